// Package store owns the in-memory record state of one session and notifies
// subscribers after every mutation.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/reconcile"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateID     = errors.New("record id already exists")
	ErrProjectNotFound = errors.New("project not found")
)

// Origin tells subscribers where a change came from. Only local and import
// changes need to be pushed to the remote store.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
	OriginImport Origin = "import"
)

type Change struct {
	Origin Origin
	Kinds  []model.Kind
}

type Store struct {
	mu        sync.RWMutex
	state     model.State
	listeners map[int]func(Change)
	nextID    int
}

func New() *Store {
	return &Store{
		state:     model.NewState(),
		listeners: make(map[int]func(Change)),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() model.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Subscribe registers fn for change notifications and returns a function
// removing it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) AddContractor(c model.Contractor) error {
	return s.mutate(OriginLocal, model.KindContractors, func(st *model.State) error {
		if _, ok := st.FindContractor(c.ID); ok {
			return fmt.Errorf("%w: contractor %s", ErrDuplicateID, c.ID)
		}
		st.Contractors = append(st.Contractors, c)
		return nil
	})
}

func (s *Store) UpdateContractor(c model.Contractor) error {
	return s.mutate(OriginLocal, model.KindContractors, func(st *model.State) error {
		for i := range st.Contractors {
			if st.Contractors[i].ID == c.ID {
				st.Contractors[i] = c
				return nil
			}
		}
		return fmt.Errorf("%w: contractor %s", ErrNotFound, c.ID)
	})
}

func (s *Store) AddProject(p model.Project) error {
	return s.mutate(OriginLocal, model.KindProjects, func(st *model.State) error {
		if _, ok := st.FindProject(p.ID); ok {
			return fmt.Errorf("%w: project %s", ErrDuplicateID, p.ID)
		}
		st.Projects = append(st.Projects, p)
		return nil
	})
}

// UpdateProject replaces a project. Certificates already issued keep the
// amortization computed with the rate in force when they were created.
func (s *Store) UpdateProject(p model.Project) error {
	return s.mutate(OriginLocal, model.KindProjects, func(st *model.State) error {
		for i := range st.Projects {
			if st.Projects[i].ID == p.ID {
				st.Projects[i] = p
				return nil
			}
		}
		return fmt.Errorf("%w: project %s", ErrNotFound, p.ID)
	})
}

// AddCertificate appends c with its advance amortization computed from the
// project's current recovery rate. Any amortization set by the caller is
// overwritten. The stored certificate is returned.
func (s *Store) AddCertificate(c model.Certificate) (model.Certificate, error) {
	err := s.mutate(OriginLocal, model.KindCertificates, func(st *model.State) error {
		project, ok := st.FindProject(c.ProjectID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, c.ProjectID)
		}
		for _, existing := range st.Certificates {
			if existing.ID == c.ID {
				return fmt.Errorf("%w: certificate %s", ErrDuplicateID, c.ID)
			}
		}
		c.AdvanceAmortization = reconcile.Amortization(c.FinancialAmount, project.AdvanceRecoveryRate)
		st.Certificates = append(st.Certificates, c)
		return nil
	})
	return c, err
}

func (s *Store) AddPayment(p model.Payment) error {
	return s.mutate(OriginLocal, model.KindPayments, func(st *model.State) error {
		for _, existing := range st.Payments {
			if existing.ID == p.ID {
				return fmt.Errorf("%w: payment %s", ErrDuplicateID, p.ID)
			}
		}
		st.Payments = append(st.Payments, p)
		return nil
	})
}

// Remove drops one record. It does not cascade: the remote store is the
// authority on referential integrity.
func (s *Store) Remove(kind model.Kind, id string) error {
	return s.mutate(OriginLocal, kind, func(st *model.State) error {
		removed := false
		switch kind {
		case model.KindContractors:
			st.Contractors, removed = removeByID(st.Contractors, id, func(c model.Contractor) string { return c.ID })
		case model.KindProjects:
			st.Projects, removed = removeByID(st.Projects, id, func(p model.Project) string { return p.ID })
		case model.KindCertificates:
			st.Certificates, removed = removeByID(st.Certificates, id, func(c model.Certificate) string { return c.ID })
		case model.KindPayments:
			st.Payments, removed = removeByID(st.Payments, id, func(p model.Payment) string { return p.ID })
		default:
			return fmt.Errorf("unknown kind %q", kind)
		}
		if !removed {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		return nil
	})
}

// Replace swaps the whole state.
func (s *Store) Replace(state model.State, origin Origin) {
	next := state.Clone()
	s.mu.Lock()
	s.state = next
	listeners := s.snapshotListeners()
	s.mu.Unlock()
	notify(listeners, Change{Origin: origin, Kinds: append([]model.Kind(nil), model.Kinds...)})
}

func (s *Store) mutate(origin Origin, kind model.Kind, fn func(*model.State) error) error {
	s.mu.Lock()
	if err := fn(&s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()
	notify(listeners, Change{Origin: origin, Kinds: []model.Kind{kind}})
	return nil
}

func (s *Store) snapshotListeners() []func(Change) {
	out := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Change), change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}

func removeByID[T any](items []T, id string, key func(T) string) ([]T, bool) {
	for i, item := range items {
		if key(item) == id {
			out := make([]T, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...), true
		}
	}
	return items, false
}
