// Package reconcile derives certified, amortized, paid and owed amounts from a
// state snapshot. All functions are pure.
package reconcile

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/nurpe/obras-service/internal/model"
)

// SettledEpsilon absorbs floating point drift: a debt smaller than this in
// magnitude counts as settled.
const SettledEpsilon = 0.01

type DebtStatus string

const (
	DebtSettled  DebtStatus = "settled"
	DebtPending  DebtStatus = "pending"
	DebtOverpaid DebtStatus = "overpaid"
)

type ProjectSummary struct {
	Project      model.Project `json:"project"`
	CertGross    float64       `json:"certGross"`
	AmortTotal   float64       `json:"amortTotal"`
	NetCertified float64       `json:"netCertified"`
	PaidTotal    float64       `json:"paidTotal"`
	Debt         float64       `json:"debt"`
	Progress     float64       `json:"progress"`
	Status       DebtStatus    `json:"status"`
}

type Portfolio struct {
	TotalBudget  float64          `json:"totalBudget"`
	CertGross    float64          `json:"certGross"`
	AmortTotal   float64          `json:"amortTotal"`
	NetCertified float64          `json:"netCertified"`
	PaidTotal    float64          `json:"paidTotal"`
	Debt         float64          `json:"debt"`
	Pending      int              `json:"pending"`
	Projects     []ProjectSummary `json:"projects"`
}

// Amortization is the part of a certificate's gross amount withheld to
// recover the project's advance.
func Amortization(gross, rate float64) float64 {
	return decimal.NewFromFloat(gross).
		Mul(decimal.NewFromFloat(rate)).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}

func Status(debt float64) DebtStatus {
	switch {
	case math.Abs(debt) < SettledEpsilon:
		return DebtSettled
	case debt > 0:
		return DebtPending
	default:
		return DebtOverpaid
	}
}

// Progress returns gross certified over budget as a percentage, or 0 when the
// project has no budget.
func Progress(certGross, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return decimal.NewFromFloat(certGross).
		Div(decimal.NewFromFloat(budget)).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

func SummarizeProject(state model.State, project model.Project) ProjectSummary {
	gross, amort, paid := decimal.Zero, decimal.Zero, decimal.Zero
	for _, c := range state.Certificates {
		if c.ProjectID != project.ID {
			continue
		}
		gross = gross.Add(decimal.NewFromFloat(c.FinancialAmount))
		amort = amort.Add(decimal.NewFromFloat(c.AdvanceAmortization))
	}
	for _, p := range state.Payments {
		if p.ProjectID == project.ID {
			paid = paid.Add(decimal.NewFromFloat(p.Amount))
		}
	}
	net := gross.Sub(amort)
	debt := net.Sub(paid)

	s := ProjectSummary{
		Project:      project,
		CertGross:    gross.InexactFloat64(),
		AmortTotal:   amort.InexactFloat64(),
		NetCertified: net.InexactFloat64(),
		PaidTotal:    paid.InexactFloat64(),
		Debt:         debt.InexactFloat64(),
	}
	s.Progress = Progress(s.CertGross, project.Budget)
	s.Status = Status(s.Debt)
	return s
}

// SummarizeProjectByID reports false when the project is not in state.
func SummarizeProjectByID(state model.State, projectID string) (ProjectSummary, bool) {
	p, ok := state.FindProject(projectID)
	if !ok {
		return ProjectSummary{}, false
	}
	return SummarizeProject(state, p), true
}

func Summaries(state model.State) []ProjectSummary {
	out := make([]ProjectSummary, 0, len(state.Projects))
	for _, p := range state.Projects {
		out = append(out, SummarizeProject(state, p))
	}
	return out
}

// SummarizePortfolio aggregates every project. Debt is the signed sum of
// project debts; overpaid projects reduce it.
func SummarizePortfolio(state model.State) Portfolio {
	summaries := Summaries(state)
	budget, gross, amort, paid, debt := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	pending := 0
	for _, s := range summaries {
		budget = budget.Add(decimal.NewFromFloat(s.Project.Budget))
		gross = gross.Add(decimal.NewFromFloat(s.CertGross))
		amort = amort.Add(decimal.NewFromFloat(s.AmortTotal))
		paid = paid.Add(decimal.NewFromFloat(s.PaidTotal))
		debt = debt.Add(decimal.NewFromFloat(s.Debt))
		if s.Status == DebtPending {
			pending++
		}
	}
	return Portfolio{
		TotalBudget:  budget.InexactFloat64(),
		CertGross:    gross.InexactFloat64(),
		AmortTotal:   amort.InexactFloat64(),
		NetCertified: gross.Sub(amort).InexactFloat64(),
		PaidTotal:    paid.InexactFloat64(),
		Debt:         debt.InexactFloat64(),
		Pending:      pending,
		Projects:     summaries,
	}
}
