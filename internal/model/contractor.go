package model

type Contractor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TaxID   string `json:"taxId"`
	Contact string `json:"contact"`
}
