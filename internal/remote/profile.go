package remote

import "github.com/nurpe/obras-service/internal/model"

const ProfilesTable = "profiles"

func ProfileToRow(p model.Profile) Row {
	return Row{
		"id":            p.ID,
		"full_name":     p.FullName,
		"position":      p.Position,
		"report_logo":   nullable(p.ReportLogo),
		"report_legend": nullable(p.ReportLegend),
	}
}

func ProfileFromRow(row Row) (model.Profile, error) {
	d := newDecoder(ProfilesTable, row)
	p := model.Profile{
		ID:           d.str("id", true),
		FullName:     d.str("full_name", true),
		Position:     d.str("position", false),
		ReportLogo:   d.str("report_logo", false),
		ReportLegend: d.str("report_legend", false),
	}
	return p, d.err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
