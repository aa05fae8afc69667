package remote

import "github.com/nurpe/obras-service/internal/model"

func CertificateToRow(c model.Certificate) Row {
	return Row{
		"id":                   c.ID,
		"project_id":           c.ProjectID,
		"period":               c.Period,
		"physical_progress":    c.PhysicalProgress,
		"financial_amount":     c.FinancialAmount,
		"advance_amortization": c.AdvanceAmortization,
		"timestamp":            formatTimestamp(c.Timestamp),
	}
}

func CertificateFromRow(row Row) (model.Certificate, error) {
	d := newDecoder(string(model.KindCertificates), row)
	c := model.Certificate{
		ID:                  d.str("id", true),
		ProjectID:           d.str("project_id", true),
		Period:              d.str("period", true),
		PhysicalProgress:    d.number("physical_progress"),
		FinancialAmount:     d.number("financial_amount"),
		AdvanceAmortization: d.number("advance_amortization"),
		Timestamp:           d.timestamp("timestamp"),
	}
	return c, d.err
}
