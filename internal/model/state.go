package model

import "fmt"

// Kind names one of the four record collections. The value doubles as the
// remote table name.
type Kind string

const (
	KindContractors  Kind = "contractors"
	KindProjects     Kind = "projects"
	KindCertificates Kind = "certificates"
	KindPayments     Kind = "payments"
)

// Kinds lists the collections in referential order: parents before children.
var Kinds = []Kind{KindContractors, KindProjects, KindCertificates, KindPayments}

func ParseKind(raw string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", raw)
}

type State struct {
	Contractors  []Contractor  `json:"contractors"`
	Projects     []Project     `json:"projects"`
	Certificates []Certificate `json:"certificates"`
	Payments     []Payment     `json:"payments"`
}

// NewState returns a State with non-nil, empty collections.
func NewState() State {
	return State{
		Contractors:  []Contractor{},
		Projects:     []Project{},
		Certificates: []Certificate{},
		Payments:     []Payment{},
	}
}

func (s State) Clone() State {
	return State{
		Contractors:  append(make([]Contractor, 0, len(s.Contractors)), s.Contractors...),
		Projects:     append(make([]Project, 0, len(s.Projects)), s.Projects...),
		Certificates: append(make([]Certificate, 0, len(s.Certificates)), s.Certificates...),
		Payments:     append(make([]Payment, 0, len(s.Payments)), s.Payments...),
	}
}

// Len returns the number of records in the collection of the given kind.
func (s State) Len(kind Kind) int {
	switch kind {
	case KindContractors:
		return len(s.Contractors)
	case KindProjects:
		return len(s.Projects)
	case KindCertificates:
		return len(s.Certificates)
	case KindPayments:
		return len(s.Payments)
	default:
		return 0
	}
}

func (s State) Empty() bool {
	for _, k := range Kinds {
		if s.Len(k) > 0 {
			return false
		}
	}
	return true
}

func (s State) FindContractor(id string) (Contractor, bool) {
	for _, c := range s.Contractors {
		if c.ID == id {
			return c, true
		}
	}
	return Contractor{}, false
}

func (s State) FindProject(id string) (Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

func (s State) CertificatesFor(projectID string) []Certificate {
	var out []Certificate
	for _, c := range s.Certificates {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out
}

func (s State) PaymentsFor(projectID string) []Payment {
	var out []Payment
	for _, p := range s.Payments {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	return out
}
