package model

import "time"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusPaused, ProjectStatusCompleted:
		return true
	default:
		return false
	}
}

type Project struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	FileNumber          string        `json:"fileNumber"`
	Budget              float64       `json:"budget"`
	AdvanceAmount       float64       `json:"advanceAmount"`
	AdvanceRecoveryRate float64       `json:"advanceRecoveryRate"` // percent of each certificate, 0-100
	ContractorID        string        `json:"contractorId"`
	StartDate           time.Time     `json:"startDate"`
	Status              ProjectStatus `json:"status"`
}
