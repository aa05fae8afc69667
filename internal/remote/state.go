package remote

import (
	"fmt"

	"github.com/nurpe/obras-service/internal/model"
)

// EncodeKind maps one collection of the state to remote rows.
func EncodeKind(state model.State, kind model.Kind) []Row {
	var rows []Row
	switch kind {
	case model.KindContractors:
		rows = make([]Row, 0, len(state.Contractors))
		for _, c := range state.Contractors {
			rows = append(rows, ContractorToRow(c))
		}
	case model.KindProjects:
		rows = make([]Row, 0, len(state.Projects))
		for _, p := range state.Projects {
			rows = append(rows, ProjectToRow(p))
		}
	case model.KindCertificates:
		rows = make([]Row, 0, len(state.Certificates))
		for _, c := range state.Certificates {
			rows = append(rows, CertificateToRow(c))
		}
	case model.KindPayments:
		rows = make([]Row, 0, len(state.Payments))
		for _, p := range state.Payments {
			rows = append(rows, PaymentToRow(p))
		}
	}
	return rows
}

// DecodeKind decodes rows of one table into the matching collection of state.
// The first malformed row aborts decoding.
func DecodeKind(state *model.State, kind model.Kind, rows []Row) error {
	for i, row := range rows {
		var err error
		switch kind {
		case model.KindContractors:
			var c model.Contractor
			if c, err = ContractorFromRow(row); err == nil {
				state.Contractors = append(state.Contractors, c)
			}
		case model.KindProjects:
			var p model.Project
			if p, err = ProjectFromRow(row); err == nil {
				state.Projects = append(state.Projects, p)
			}
		case model.KindCertificates:
			var c model.Certificate
			if c, err = CertificateFromRow(row); err == nil {
				state.Certificates = append(state.Certificates, c)
			}
		case model.KindPayments:
			var p model.Payment
			if p, err = PaymentFromRow(row); err == nil {
				state.Payments = append(state.Payments, p)
			}
		default:
			return fmt.Errorf("unknown kind %q", kind)
		}
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}
