package model

import "time"

// Certificate is a periodic progress declaration. AdvanceAmortization is
// computed once from the project's recovery rate when the certificate is
// created and is never recomputed.
type Certificate struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"projectId"`
	Period              string    `json:"period"` // MM/YYYY by convention
	PhysicalProgress    float64   `json:"physicalProgress"`
	FinancialAmount     float64   `json:"financialAmount"`
	AdvanceAmortization float64   `json:"advanceAmortization"`
	Timestamp           time.Time `json:"timestamp"`
}

// Net is the certified amount after advance recovery.
func (c Certificate) Net() float64 {
	return c.FinancialAmount - c.AdvanceAmortization
}
