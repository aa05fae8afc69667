package remote

import (
	"fmt"

	"github.com/nurpe/obras-service/internal/model"
)

func ProjectToRow(p model.Project) Row {
	return Row{
		"id":                    p.ID,
		"name":                  p.Name,
		"file_number":           p.FileNumber,
		"budget":                p.Budget,
		"advance_amount":        p.AdvanceAmount,
		"advance_recovery_rate": p.AdvanceRecoveryRate,
		"contractor_id":         p.ContractorID,
		"start_date":            formatDate(p.StartDate),
		"status":                string(p.Status),
	}
}

func ProjectFromRow(row Row) (model.Project, error) {
	d := newDecoder(string(model.KindProjects), row)
	p := model.Project{
		ID:                  d.str("id", true),
		Name:                d.str("name", true),
		FileNumber:          d.str("file_number", true),
		Budget:              d.number("budget"),
		AdvanceAmount:       d.number("advance_amount"),
		AdvanceRecoveryRate: d.number("advance_recovery_rate"),
		ContractorID:        d.str("contractor_id", true),
		StartDate:           d.date("start_date", false),
		Status:              model.ProjectStatus(d.str("status", true)),
	}
	if d.err == nil && !p.Status.Valid() {
		d.fail("status", fmt.Sprintf("unknown status %q", p.Status))
	}
	return p, d.err
}
