package remote

import "github.com/nurpe/obras-service/internal/model"

// The payment date lives in payment_date; "date" is reserved in the remote schema.
func PaymentToRow(p model.Payment) Row {
	return Row{
		"id":           p.ID,
		"project_id":   p.ProjectID,
		"amount":       p.Amount,
		"payment_date": formatDate(p.Date),
		"reference":    p.Reference,
	}
}

func PaymentFromRow(row Row) (model.Payment, error) {
	d := newDecoder(string(model.KindPayments), row)
	p := model.Payment{
		ID:        d.str("id", true),
		ProjectID: d.str("project_id", true),
		Amount:    d.number("amount"),
		Date:      d.date("payment_date", true),
		Reference: d.str("reference", false),
	}
	return p, d.err
}
