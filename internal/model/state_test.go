package model

import "testing"

func TestStateCloneIsIndependent(t *testing.T) {
	s := NewState()
	s.Projects = append(s.Projects, Project{ID: "p1", Name: "Ruta 5"})

	c := s.Clone()
	c.Projects[0].Name = "changed"
	c.Payments = append(c.Payments, Payment{ID: "x"})

	if s.Projects[0].Name != "Ruta 5" {
		t.Fatalf("clone shares project storage")
	}
	if len(s.Payments) != 0 {
		t.Fatalf("clone shares payment slice")
	}
}

func TestStateFilters(t *testing.T) {
	s := State{
		Certificates: []Certificate{{ID: "c1", ProjectID: "a"}, {ID: "c2", ProjectID: "b"}, {ID: "c3", ProjectID: "a"}},
		Payments:     []Payment{{ID: "p1", ProjectID: "b"}},
	}
	if got := len(s.CertificatesFor("a")); got != 2 {
		t.Fatalf("expected 2 certificates for a, got %d", got)
	}
	if got := len(s.PaymentsFor("a")); got != 0 {
		t.Fatalf("expected no payments for a, got %d", got)
	}
	if s.Empty() {
		t.Fatalf("state with records reported empty")
	}
	if !NewState().Empty() {
		t.Fatalf("new state not empty")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("payments"); err != nil || k != KindPayments {
		t.Fatalf("unexpected parse: %v %v", k, err)
	}
	if _, err := ParseKind("trips"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
