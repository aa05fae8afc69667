package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/repository"
	"github.com/nurpe/obras-service/internal/store"
)

type ProfileStore interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
	Create(ctx context.Context, p model.Profile) error
	UpdateBranding(ctx context.Context, id, logo, legend string) error
}

type Dependencies struct {
	Remote        repository.Remote
	Profiles      ProfileStore
	Reports       ReportGenerator
	Sync          cloudsync.Options
	DefaultLegend string
	Now           func() time.Time
	NewID         func() string
}

type ProfileInput struct {
	FullName string `json:"fullName"`
	Position string `json:"position"`
}

type BrandingInput struct {
	Logo   string `json:"reportLogo"`
	Legend string `json:"reportLegend"`
}

// Sessions keeps one workspace per signed-in user.
type Sessions struct {
	deps *Dependencies
	log  zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewSessions(deps Dependencies, log zerolog.Logger) *Sessions {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = newID
	}
	return &Sessions{
		deps:       &deps,
		log:        log.With().Str("component", "sessions").Logger(),
		workspaces: make(map[string]*Workspace),
	}
}

// Open returns the user's workspace, creating it and loading the remote
// tables on first use. Callers arriving while the initial load runs wait for
// it. A failed initial load leaves the workspace open in the error status
// with empty state.
func (s *Sessions) Open(ctx context.Context, userID string) (*Workspace, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	if w, ok := s.workspaces[userID]; ok {
		s.mu.Unlock()
		select {
		case <-w.ready:
			return w, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	log := s.log.With().Str("user_id", userID).Logger()
	st := store.New()
	w := &Workspace{
		userID: userID,
		store:  st,
		engine: cloudsync.NewEngine(st, s.deps.Remote, s.deps.Sync, log),
		deps:   s.deps,
		log:    log,
		ready:  make(chan struct{}),
	}
	s.workspaces[userID] = w
	s.mu.Unlock()

	defer close(w.ready)
	if err := w.engine.Load(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, cloudsync.ErrStaleLoad) {
		log.Warn().Err(err).Msg("initial load failed")
	}
	return w, nil
}

// Close flushes pending changes, stops the sync engine and drops the user's
// in-memory records. It reports false when no workspace was open.
func (s *Sessions) Close(ctx context.Context, userID string) (cloudsync.PushReport, bool, error) {
	s.mu.Lock()
	w, ok := s.workspaces[userID]
	delete(s.workspaces, userID)
	s.mu.Unlock()
	if !ok {
		return cloudsync.PushReport{}, false, nil
	}

	report, pushed := w.close(ctx)
	if pushed && report.Err != nil {
		return report, true, fmt.Errorf("%w: %w", ErrRemote, report.Err)
	}
	w.log.Info().Bool("flushed", pushed).Msg("session closed")
	return report, pushed, nil
}

// CloseAll closes every open workspace. Used on shutdown.
func (s *Sessions) CloseAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if _, _, err := s.Close(ctx, id); err != nil {
			s.log.Error().Err(err).Str("user_id", id).Msg("close session failed")
		}
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

func (s *Sessions) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.deps.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, profileError(err)
	}
	return p, nil
}

// CreateProfile stores the profile written at sign-up.
func (s *Sessions) CreateProfile(ctx context.Context, userID string, in ProfileInput) (*model.Profile, error) {
	p := model.Profile{
		ID:       userID,
		FullName: strings.TrimSpace(in.FullName),
		Position: strings.TrimSpace(in.Position),
	}
	if p.FullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if err := s.deps.Profiles.Create(ctx, p); err != nil {
		return nil, profileError(err)
	}
	return &p, nil
}

func (s *Sessions) UpdateBranding(ctx context.Context, userID string, in BrandingInput) (*model.Profile, error) {
	logo := strings.TrimSpace(in.Logo)
	legend := strings.TrimSpace(in.Legend)
	if err := s.deps.Profiles.UpdateBranding(ctx, userID, logo, legend); err != nil {
		return nil, profileError(err)
	}
	return s.Profile(ctx, userID)
}

func profileError(err error) error {
	if errors.Is(err, repository.ErrProfileNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
