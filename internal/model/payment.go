package model

import "time"

type Payment struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Reference string    `json:"reference"`
}
