package remote

import "github.com/nurpe/obras-service/internal/model"

func ContractorToRow(c model.Contractor) Row {
	return Row{
		"id":      c.ID,
		"name":    c.Name,
		"tax_id":  c.TaxID,
		"contact": c.Contact,
	}
}

func ContractorFromRow(row Row) (model.Contractor, error) {
	d := newDecoder(string(model.KindContractors), row)
	c := model.Contractor{
		ID:      d.str("id", true),
		Name:    d.str("name", true),
		TaxID:   d.str("tax_id", true),
		Contact: d.str("contact", false),
	}
	return c, d.err
}
