package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/remote"
)

// foreignKeys lists child table -> column -> parent table.
var foreignKeys = map[string]map[string]string{
	string(model.KindProjects):     {"contractor_id": string(model.KindContractors)},
	string(model.KindCertificates): {"project_id": string(model.KindProjects)},
	string(model.KindPayments):     {"project_id": string(model.KindProjects)},
}

// MemoryRemote is an in-process Remote with the same foreign-key rules as the
// Postgres schema. Failures can be injected per table and operation.
type MemoryRemote struct {
	mu     sync.Mutex
	tables map[string]map[string]remote.Row
	faults map[string]error
	calls  map[string]int
}

func NewMemoryRemote() *MemoryRemote {
	m := &MemoryRemote{
		tables: make(map[string]map[string]remote.Row),
		faults: make(map[string]error),
		calls:  make(map[string]int),
	}
	for _, k := range model.Kinds {
		m.tables[string(k)] = make(map[string]remote.Row)
	}
	return m
}

// Fail makes every later op ("select", "upsert", "delete") on table return
// err. A nil err clears the fault.
func (m *MemoryRemote) Fail(op, table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + table
	if err == nil {
		delete(m.faults, key)
		return
	}
	m.faults[key] = err
}

// Calls returns how many times op was invoked on table.
func (m *MemoryRemote) Calls(op, table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op+":"+table]
}

func (m *MemoryRemote) SelectAll(_ context.Context, table string) ([]remote.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.begin("select", table)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]remote.Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRow(rows[id]))
	}
	return out, nil
}

func (m *MemoryRemote) Upsert(_ context.Context, table string, rows []remote.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, err := m.begin("upsert", table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		for column, parent := range foreignKeys[table] {
			ref, _ := row[column].(string)
			if _, ok := m.tables[parent][ref]; !ok {
				return fmt.Errorf("%w: %s.%s=%q not present in %s", ErrForeignKey, table, column, ref, parent)
			}
		}
	}
	for _, row := range rows {
		id, _ := row["id"].(string)
		existing[id] = copyRow(row)
	}
	return nil
}

func (m *MemoryRemote) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.begin("delete", table)
	if err != nil {
		return err
	}
	for child, refs := range foreignKeys {
		for column, parent := range refs {
			if parent != table {
				continue
			}
			for _, row := range m.tables[child] {
				if row[column] == id {
					return fmt.Errorf("%w: %s still referenced by %s", ErrForeignKey, id, child)
				}
			}
		}
	}
	delete(rows, id)
	return nil
}

// Rows returns a copy of the table contents, for assertions.
func (m *MemoryRemote) Rows(table string) []remote.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tables[table]))
	for id := range m.tables[table] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]remote.Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRow(m.tables[table][id]))
	}
	return out
}

func (m *MemoryRemote) begin(op, table string) (map[string]remote.Row, error) {
	key := op + ":" + table
	m.calls[key]++
	if err := m.faults[key]; err != nil {
		return nil, err
	}
	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: table %s", ErrSchema, table)
	}
	return rows, nil
}

func copyRow(row remote.Row) remote.Row {
	out := make(remote.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
