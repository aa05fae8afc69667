package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/remote"
)

type PostgresRemote struct {
	db *gorm.DB
}

func NewPostgresRemote(db *gorm.DB) *PostgresRemote {
	return &PostgresRemote{db: db}
}

func (r *PostgresRemote) SelectAll(ctx context.Context, table string) ([]remote.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	if err := r.db.WithContext(ctx).Table(table).Order("id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	out := make([]remote.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, remote.Row(row))
	}
	return out, nil
}

// Upsert writes all rows in one statement, updating every non-id column of
// rows whose id already exists.
func (r *PostgresRemote) Upsert(ctx context.Context, table string, rows []remote.Row) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, map[string]interface{}(row))
	}
	err := r.db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(rows[0].Columns()),
		}).
		Create(&values).Error
	return classify(err)
}

func (r *PostgresRemote) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id).Error
	return classify(err)
}

// checkTable keeps table names interpolated into SQL to the known set.
func checkTable(table string) error {
	if _, err := model.ParseKind(table); err != nil {
		return fmt.Errorf("invalid table: %w", err)
	}
	return nil
}
