package cloudsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/remote"
	"github.com/nurpe/obras-service/internal/repository"
	"github.com/nurpe/obras-service/internal/store"
)

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// manualClock hands out timers that only fire when the test says so.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FireAll runs every timer, including stopped ones, to prove stale timers
// are inert.
func (c *manualClock) FireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		t.fn()
	}
}

func (c *manualClock) Pending() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTimer
	for _, t := range c.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

func newTestEngine(t *testing.T, rem repository.Remote, opts Options) (*Engine, *store.Store, *manualClock) {
	t.Helper()
	clock := newManualClock()
	opts.AfterFunc = clock.AfterFunc
	opts.Now = clock.Now
	st := store.New()
	e := NewEngine(st, rem, opts, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, st, clock
}

func seedRemote(t *testing.T, m *repository.MemoryRemote) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(m.Upsert(ctx, "contractors", []remote.Row{remote.ContractorToRow(model.Contractor{ID: "c1", Name: "Vial Sur", TaxID: "30-1"})}))
	must(m.Upsert(ctx, "projects", []remote.Row{remote.ProjectToRow(model.Project{
		ID: "p1", Name: "Ruta 5", FileNumber: "EX-1", Budget: 1_000_000, AdvanceAmount: 200_000,
		AdvanceRecoveryRate: 20, ContractorID: "c1", Status: model.ProjectStatusActive,
	})}))
	must(m.Upsert(ctx, "certificates", []remote.Row{remote.CertificateToRow(model.Certificate{
		ID: "k1", ProjectID: "p1", Period: "04/2024", FinancialAmount: 100_000, AdvanceAmortization: 20_000,
		Timestamp: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	})}))
}

func TestLoadReplacesStateWithoutPushing(t *testing.T) {
	mem := repository.NewMemoryRemote()
	seedRemote(t, mem)
	e, st, clock := newTestEngine(t, mem, Options{})

	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := st.Snapshot()
	if len(snap.Contractors) != 1 || len(snap.Projects) != 1 || len(snap.Certificates) != 1 || len(snap.Payments) != 0 {
		t.Fatalf("unexpected state %+v", snap)
	}
	if e.Status() != StatusConnected {
		t.Fatalf("status = %s", e.Status())
	}
	if len(clock.Pending()) != 0 {
		t.Fatalf("load scheduled a push")
	}
	for _, k := range model.Kinds {
		if mem.Calls("select", string(k)) != 1 {
			t.Fatalf("expected one select on %s", k)
		}
	}
}

func TestLoadFailureLeavesStateUntouched(t *testing.T) {
	mem := repository.NewMemoryRemote()
	seedRemote(t, mem)
	e, st, _ := newTestEngine(t, mem, Options{})
	if err := st.AddContractor(model.Contractor{ID: "local"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	mem.Fail("select", "payments", errors.New("network down"))
	if err := e.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if e.Status() != StatusError {
		t.Fatalf("status = %s", e.Status())
	}
	snap := st.Snapshot()
	if len(snap.Contractors) != 1 || snap.Contractors[0].ID != "local" {
		t.Fatalf("state changed on failed load: %+v", snap)
	}
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	mem := repository.NewMemoryRemote()
	_ = mem.Upsert(context.Background(), "contractors", []remote.Row{{"id": "c1"}})
	e, st, _ := newTestEngine(t, mem, Options{})

	err := e.Load(context.Background())
	var de *remote.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !st.Snapshot().Empty() {
		t.Fatalf("malformed load applied")
	}
}

func TestDebounceCollapsesBurst(t *testing.T) {
	mem := repository.NewMemoryRemote()
	e, st, clock := newTestEngine(t, mem, Options{DebounceWindow: 2 * time.Second})

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if err := st.AddContractor(model.Contractor{ID: id, Name: id, TaxID: id}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		clock.Advance(500 * time.Millisecond)
	}
	if n := len(clock.Pending()); n != 1 {
		t.Fatalf("expected exactly one live timer, got %d", n)
	}
	if d := clock.Pending()[0].delay; d != 2*time.Second {
		t.Fatalf("delay = %v", d)
	}

	clock.FireAll()

	if got := mem.Calls("upsert", "contractors"); got != 1 {
		t.Fatalf("expected one push, got %d", got)
	}
	if got := len(mem.Rows("contractors")); got != 5 {
		t.Fatalf("expected 5 remote rows, got %d", got)
	}
	if e.Status() != StatusConnected {
		t.Fatalf("status = %s", e.Status())
	}
}

func TestMaxWaitBoundsDeferral(t *testing.T) {
	mem := repository.NewMemoryRemote()
	_, st, clock := newTestEngine(t, mem, Options{DebounceWindow: 2 * time.Second, MaxWait: 3 * time.Second})

	_ = st.AddContractor(model.Contractor{ID: "a"})
	clock.Advance(1500 * time.Millisecond)
	_ = st.AddContractor(model.Contractor{ID: "b"})

	pending := clock.Pending()
	if len(pending) != 1 || pending[0].delay != 1500*time.Millisecond {
		t.Fatalf("expected capped delay of 1.5s, got %+v", pending)
	}
}

func TestPushSkipsEmptyAndStopsAtFailure(t *testing.T) {
	mem := repository.NewMemoryRemote()
	e, st, _ := newTestEngine(t, mem, Options{})

	_ = st.AddContractor(model.Contractor{ID: "c1", Name: "A", TaxID: "1"})
	_ = st.AddProject(model.Project{ID: "p1", Name: "P", FileNumber: "F", ContractorID: "c1", AdvanceRecoveryRate: 10, Status: model.ProjectStatusActive})
	_ = st.AddPayment(model.Payment{ID: "m1", ProjectID: "p1", Amount: 5, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	mem.Fail("upsert", "projects", errors.New("timeout"))
	report, ok := e.Flush(context.Background())
	if !ok {
		t.Fatalf("expected a pending push")
	}
	want := map[model.Kind]PushOutcome{
		model.KindContractors:  PushPushed,
		model.KindProjects:     PushFailed,
		model.KindCertificates: PushSkipped,
		model.KindPayments:     PushSkipped,
	}
	for k, v := range want {
		if report.Outcomes[k] != v {
			t.Fatalf("%s outcome = %s, want %s", k, report.Outcomes[k], v)
		}
	}
	if report.Err == nil || e.Status() != StatusError {
		t.Fatalf("expected push error and error status")
	}
	if len(mem.Rows("contractors")) != 1 {
		t.Fatalf("successful collection should stay applied")
	}

	mem.Fail("upsert", "projects", nil)
	_ = st.AddContractor(model.Contractor{ID: "c2", Name: "B", TaxID: "2"})
	report, _ = e.Flush(context.Background())
	if report.Err != nil {
		t.Fatalf("retry push: %v", report.Err)
	}
	if report.Outcomes[model.KindCertificates] != PushEmpty || report.Outcomes[model.KindPayments] != PushPushed {
		t.Fatalf("unexpected outcomes %+v", report.Outcomes)
	}
	if last, ok := e.LastPush(); !ok || last.Err != nil {
		t.Fatalf("last push not recorded")
	}
}

func TestFlushWithoutPending(t *testing.T) {
	e, _, _ := newTestEngine(t, repository.NewMemoryRemote(), Options{})
	if _, ok := e.Flush(context.Background()); ok {
		t.Fatalf("flush without pending push should report false")
	}
}

func TestDeleteReferencedProjectRejected(t *testing.T) {
	mem := repository.NewMemoryRemote()
	seedRemote(t, mem)
	e, st, _ := newTestEngine(t, mem, Options{})
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := st.Snapshot()

	err := e.Delete(context.Background(), model.KindProjects, "p1")
	if !errors.Is(err, ErrLinkedRecords) {
		t.Fatalf("expected ErrLinkedRecords, got %v", err)
	}
	if e.Status() != StatusError {
		t.Fatalf("status = %s", e.Status())
	}
	after := st.Snapshot()
	if len(after.Projects) != len(before.Projects) || len(after.Certificates) != len(before.Certificates) {
		t.Fatalf("local state changed after rejected delete")
	}
}

func TestDeleteRemoteFirst(t *testing.T) {
	mem := repository.NewMemoryRemote()
	seedRemote(t, mem)
	e, st, clock := newTestEngine(t, mem, Options{})
	_ = e.Load(context.Background())

	mem.Fail("delete", "certificates", errors.New("503"))
	err := e.Delete(context.Background(), model.KindCertificates, "k1")
	if err == nil || errors.Is(err, ErrLinkedRecords) {
		t.Fatalf("expected generic error, got %v", err)
	}
	if len(st.Snapshot().Certificates) != 1 {
		t.Fatalf("certificate removed locally despite remote failure")
	}

	mem.Fail("delete", "certificates", nil)
	if err := e.Delete(context.Background(), model.KindCertificates, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(st.Snapshot().Certificates) != 0 || len(mem.Rows("certificates")) != 0 {
		t.Fatalf("certificate not removed")
	}
	if e.Status() != StatusConnected {
		t.Fatalf("status = %s", e.Status())
	}
	if len(clock.Pending()) != 1 {
		t.Fatalf("local removal should schedule a push")
	}
}

// blockingRemote holds SelectAll until released so loads can overlap.
type blockingRemote struct {
	*repository.MemoryRemote
	gate chan struct{}
}

func (b *blockingRemote) SelectAll(ctx context.Context, table string) ([]remote.Row, error) {
	if b.gate != nil {
		<-b.gate
	}
	return b.MemoryRemote.SelectAll(ctx, table)
}

func TestStaleLoadDiscarded(t *testing.T) {
	mem := repository.NewMemoryRemote()
	seedRemote(t, mem)
	slow := &blockingRemote{MemoryRemote: mem, gate: make(chan struct{})}
	e, st, _ := newTestEngine(t, slow, Options{})

	done := make(chan error, 1)
	go func() { done <- e.Load(context.Background()) }()

	// Wait until the first load has registered its generation.
	for {
		e.mu.Lock()
		gen := e.loadGen
		e.mu.Unlock()
		if gen == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	e.Close()
	close(slow.gate)

	if err := <-done; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("expected stale load, got %v", err)
	}
	if !st.Snapshot().Empty() {
		t.Fatalf("stale load mutated state")
	}
	if err := e.Load(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestStatusListener(t *testing.T) {
	mem := repository.NewMemoryRemote()
	e, _, _ := newTestEngine(t, mem, Options{})
	var seen []Status
	e.OnStatus(func(s Status) { seen = append(seen, s) })

	_ = e.Load(context.Background())
	mem.Fail("select", "projects", errors.New("x"))
	_ = e.Load(context.Background())

	want := []Status{StatusConnected, StatusSyncing, StatusError}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	mem := repository.NewMemoryRemote()
	e, _, _ := newTestEngine(t, mem, Options{Metrics: m})
	_ = e.Load(context.Background())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "obras_sync_loads_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("loads counter not exported")
	}
}
