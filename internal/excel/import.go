package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/obras-service/internal/model"
)

// Import reads a workbook produced by Export. Missing sheets yield empty
// collections; columns are located by header name.
func Import(r io.Reader) (model.State, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return model.State{}, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	defer file.Close()

	state := model.NewState()
	present := make(map[string]bool)
	for _, name := range file.GetSheetList() {
		present[name] = true
	}

	if present[SheetContractors] {
		err := readSheet(file, SheetContractors, func(row sheetRow) error {
			state.Contractors = append(state.Contractors, model.Contractor{
				ID:      row.str("id"),
				Name:    row.required("name"),
				TaxID:   row.required("taxId"),
				Contact: row.str("contact"),
			})
			return row.err
		})
		if err != nil {
			return model.State{}, err
		}
	}

	if present[SheetProjects] {
		err := readSheet(file, SheetProjects, func(row sheetRow) error {
			status := model.ProjectStatus(row.str("status"))
			if status == "" {
				status = model.ProjectStatusActive
			}
			if !status.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			state.Projects = append(state.Projects, model.Project{
				ID:                  row.str("id"),
				Name:                row.required("name"),
				FileNumber:          row.required("fileNumber"),
				Budget:              row.number("budget"),
				AdvanceAmount:       row.number("advanceAmount"),
				AdvanceRecoveryRate: row.number("advanceRecoveryRate"),
				ContractorID:        row.required("contractorId"),
				StartDate:           row.date("startDate", false),
				Status:              status,
			})
			return row.err
		})
		if err != nil {
			return model.State{}, err
		}
	}

	if present[SheetCertificates] {
		err := readSheet(file, SheetCertificates, func(row sheetRow) error {
			state.Certificates = append(state.Certificates, model.Certificate{
				ID:                  row.str("id"),
				ProjectID:           row.required("projectId"),
				Period:              row.required("period"),
				PhysicalProgress:    row.number("physicalProgress"),
				FinancialAmount:     row.number("financialAmount"),
				AdvanceAmortization: row.number("advanceAmortization"),
				Timestamp:           row.timestamp("timestamp"),
			})
			return row.err
		})
		if err != nil {
			return model.State{}, err
		}
	}

	if present[SheetPayments] {
		err := readSheet(file, SheetPayments, func(row sheetRow) error {
			state.Payments = append(state.Payments, model.Payment{
				ID:        row.str("id"),
				ProjectID: row.required("projectId"),
				Amount:    row.number("amount"),
				Date:      row.date("date", true),
				Reference: row.str("reference"),
			})
			return row.err
		})
		if err != nil {
			return model.State{}, err
		}
	}

	return state, nil
}

type sheetRow struct {
	columns map[string]int
	cells   []string
	err     error
}

func (r *sheetRow) str(name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

// required returns the cell like str and records an error when it is blank.
func (r *sheetRow) required(name string) string {
	v := r.str(name)
	if v == "" && r.err == nil {
		r.err = fmt.Errorf("column %s: value is required", name)
	}
	return v
}

func (r *sheetRow) number(name string) float64 {
	raw := r.str(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: not a number: %q", name, raw)
	}
	return v
}

func (r *sheetRow) date(name string, required bool) time.Time {
	raw := r.str(name)
	if raw == "" {
		if required {
			r.required(name)
		}
		return time.Time{}
	}
	if len(raw) > 10 {
		raw = raw[:10]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: not a date: %q", name, raw)
	}
	return t
}

func (r *sheetRow) timestamp(name string) time.Time {
	raw := r.required(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: not a timestamp: %q", name, raw)
	}
	return t
}

func readSheet(file *excelize.File, sheet string, fn func(row sheetRow) error) error {
	rows, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("%w: sheet %s: %v", ErrMalformedWorkbook, sheet, err)
	}
	if len(rows) == 0 {
		return nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		columns[strings.TrimSpace(h)] = i
	}
	if _, ok := columns["id"]; !ok {
		return fmt.Errorf("%w: sheet %s: missing id column", ErrMalformedWorkbook, sheet)
	}

	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		row := sheetRow{columns: columns, cells: cells}
		if row.str("id") == "" {
			return fmt.Errorf("%w: sheet %s row %d: missing id", ErrMalformedWorkbook, sheet, i+2)
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("%w: sheet %s row %d: %v", ErrMalformedWorkbook, sheet, i+2, err)
		}
	}
	return nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
