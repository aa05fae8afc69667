// Package cloudsync keeps a session store in step with the remote tables: a
// full load on start or refresh, a debounced full push after local changes,
// and immediate remote-first deletes.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/remote"
	"github.com/nurpe/obras-service/internal/repository"
	"github.com/nurpe/obras-service/internal/store"
)

type Status string

const (
	StatusSyncing   Status = "syncing"
	StatusConnected Status = "connected"
	StatusError     Status = "error"
)

var (
	// ErrLinkedRecords is returned when a delete is rejected because other
	// records still reference the target.
	ErrLinkedRecords = errors.New("linked records must be deleted first")
	ErrClosed        = errors.New("sync engine closed")
	// ErrStaleLoad is returned by a load whose result was discarded because a
	// newer load started or the engine was closed while it was in flight.
	ErrStaleLoad = errors.New("load superseded")
)

const DefaultDebounceWindow = 2 * time.Second

// Timer is the part of *time.Timer the engine needs.
type Timer interface {
	Stop() bool
}

type Options struct {
	DebounceWindow time.Duration
	// MaxWait caps how long a stream of changes can postpone a push.
	// Zero means no cap.
	MaxWait   time.Duration
	Metrics   *Metrics
	AfterFunc func(time.Duration, func()) Timer
	Now       func() time.Time
}

type PushOutcome string

const (
	PushPushed  PushOutcome = "pushed"
	PushFailed  PushOutcome = "failed"
	PushSkipped PushOutcome = "skipped"
	PushEmpty   PushOutcome = "empty"
)

// PushReport records what one push cycle did per collection. Collections
// pushed before a failure stay applied remotely.
type PushReport struct {
	At       time.Time                   `json:"at"`
	Outcomes map[model.Kind]PushOutcome `json:"outcomes"`
	Err      error                       `json:"-"`
}

type Engine struct {
	store  *store.Store
	remote repository.Remote
	opts   Options
	log    zerolog.Logger

	mu           sync.Mutex
	status       Status
	listeners    map[int]func(Status)
	nextListener int
	timer        Timer
	timerSeq     uint64
	pendingSince time.Time
	loadGen      uint64
	closed       bool
	lastPush     *PushReport

	pushMu      sync.Mutex
	unsubscribe func()
}

func NewEngine(st *store.Store, rem repository.Remote, opts Options, log zerolog.Logger) *Engine {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		store:     st,
		remote:    rem,
		opts:      opts,
		log:       log.With().Str("component", "sync").Logger(),
		status:    StatusSyncing,
		listeners: make(map[int]func(Status)),
	}
	e.unsubscribe = st.Subscribe(e.onChange)
	return e
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastPush returns a copy of the most recent push report, if any.
func (e *Engine) LastPush() (PushReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastPush == nil {
		return PushReport{}, false
	}
	r := *e.lastPush
	r.Outcomes = make(map[model.Kind]PushOutcome, len(e.lastPush.Outcomes))
	for k, v := range e.lastPush.Outcomes {
		r.Outcomes[k] = v
	}
	return r, true
}

// OnStatus registers fn for status transitions.
func (e *Engine) OnStatus(fn func(Status)) func() {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Load reads the four tables concurrently and, only if all succeed and decode,
// replaces the store contents. On failure the store is left untouched.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.loadGen++
	gen := e.loadGen
	e.mu.Unlock()

	e.setStatus(StatusSyncing)
	started := e.opts.Now()

	results := make([][]remote.Row, len(model.Kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range model.Kinds {
		g.Go(func() error {
			rows, err := e.remote.SelectAll(gctx, string(kind))
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			results[i] = rows
			return nil
		})
	}
	err := g.Wait()

	next := model.NewState()
	if err == nil {
		for i, kind := range model.Kinds {
			if err = remote.DecodeKind(&next, kind, results[i]); err != nil {
				err = fmt.Errorf("load %s: %w", kind, err)
				break
			}
		}
	}

	e.mu.Lock()
	if e.closed || gen != e.loadGen {
		e.mu.Unlock()
		e.log.Debug().Uint64("generation", gen).Msg("discarding stale load result")
		return ErrStaleLoad
	}
	if err != nil {
		e.mu.Unlock()
		e.opts.Metrics.observeLoad(false)
		e.log.Error().Err(err).Msg("load failed")
		e.setStatus(StatusError)
		return err
	}
	// The store notifies with OriginRemote, which onChange ignores without
	// taking e.mu.
	e.store.Replace(next, store.OriginRemote)
	e.mu.Unlock()

	e.opts.Metrics.observeLoad(true)
	e.log.Info().
		Int("contractors", len(next.Contractors)).
		Int("projects", len(next.Projects)).
		Int("certificates", len(next.Certificates)).
		Int("payments", len(next.Payments)).
		Dur("took", e.opts.Now().Sub(started)).
		Msg("state loaded")
	e.setStatus(StatusConnected)
	return nil
}

// Delete removes a record remotely first and locally only after the remote
// confirmed it. It is not debounced.
func (e *Engine) Delete(ctx context.Context, kind model.Kind, id string) error {
	if e.isClosed() {
		return ErrClosed
	}
	e.setStatus(StatusSyncing)

	err := e.remote.Delete(ctx, string(kind), id)
	if err != nil {
		e.opts.Metrics.observeDelete(kind, false)
		e.setStatus(StatusError)
		if errors.Is(err, repository.ErrForeignKey) {
			e.log.Warn().Str("kind", string(kind)).Str("id", id).Msg("delete rejected, record still referenced")
			return fmt.Errorf("%w: %w", ErrLinkedRecords, err)
		}
		e.log.Error().Err(err).Str("kind", string(kind)).Str("id", id).Msg("delete failed")
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}

	if e.isClosed() {
		return ErrClosed
	}
	if err := e.store.Remove(kind, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		e.setStatus(StatusError)
		return err
	}
	e.opts.Metrics.observeDelete(kind, true)
	e.setStatus(StatusConnected)
	return nil
}

// Flush runs a pending push immediately. It reports false when nothing was
// pending.
func (e *Engine) Flush(ctx context.Context) (PushReport, bool) {
	e.mu.Lock()
	if e.timer == nil {
		e.mu.Unlock()
		return PushReport{}, false
	}
	e.timer.Stop()
	e.timer = nil
	e.timerSeq++
	e.mu.Unlock()
	return e.push(ctx), true
}

// Close stops the pending push timer and detaches from the store. In-flight
// loads finishing afterwards are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerSeq++
	e.mu.Unlock()
	e.unsubscribe()
}

func (e *Engine) onChange(c store.Change) {
	if c.Origin == store.OriginRemote {
		return
	}
	e.schedule()
}

// schedule restarts the debounce window. Only the most recent schedule fires.
func (e *Engine) schedule() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	now := e.opts.Now()
	if e.timer != nil {
		e.timer.Stop()
	} else {
		e.pendingSince = now
	}

	delay := e.opts.DebounceWindow
	if e.opts.MaxWait > 0 {
		remaining := e.pendingSince.Add(e.opts.MaxWait).Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		if remaining < delay {
			delay = remaining
		}
	}

	e.timerSeq++
	seq := e.timerSeq
	e.timer = e.opts.AfterFunc(delay, func() { e.fire(seq) })
}

func (e *Engine) fire(seq uint64) {
	e.mu.Lock()
	if e.closed || seq != e.timerSeq {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()
	e.push(context.Background())
}

// push upserts every non-empty collection in referential order and stops at
// the first failure. Collections already written are not rolled back.
func (e *Engine) push(ctx context.Context) PushReport {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	snap := e.store.Snapshot()
	report := PushReport{At: e.opts.Now(), Outcomes: make(map[model.Kind]PushOutcome, len(model.Kinds))}
	for _, kind := range model.Kinds {
		if report.Err != nil {
			report.Outcomes[kind] = PushSkipped
			continue
		}
		if snap.Len(kind) == 0 {
			report.Outcomes[kind] = PushEmpty
			continue
		}
		if err := e.remote.Upsert(ctx, string(kind), remote.EncodeKind(snap, kind)); err != nil {
			report.Outcomes[kind] = PushFailed
			report.Err = fmt.Errorf("push %s: %w", kind, err)
			continue
		}
		report.Outcomes[kind] = PushPushed
		e.opts.Metrics.observeRows(kind, snap.Len(kind))
	}

	e.mu.Lock()
	stored := report
	e.lastPush = &stored
	e.mu.Unlock()

	e.opts.Metrics.observePush(report.Err == nil)
	if report.Err != nil {
		e.log.Error().Err(report.Err).Interface("outcomes", report.Outcomes).Msg("push failed")
		e.setStatus(StatusError)
	} else {
		e.log.Debug().Interface("outcomes", report.Outcomes).Msg("state pushed")
		e.setStatus(StatusConnected)
	}
	return report
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	if e.status == s {
		e.mu.Unlock()
		return
	}
	e.status = s
	listeners := make([]func(Status), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	e.opts.Metrics.setStatus(s)
	for _, fn := range listeners {
		fn(s)
	}
}
