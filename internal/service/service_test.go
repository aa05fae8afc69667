package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/excel"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/pdf"
	"github.com/nurpe/obras-service/internal/reconcile"
	"github.com/nurpe/obras-service/internal/remote"
	"github.com/nurpe/obras-service/internal/repository"
)

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

var fixedNow = time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC)

type fixture struct {
	remote   *repository.MemoryRemote
	profiles *repository.MemoryProfiles
	sessions *Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := repository.NewMemoryRemote()
	profiles := repository.NewMemoryProfiles()
	seq := 0
	sessions := NewSessions(Dependencies{
		Remote:   mem,
		Profiles: profiles,
		Reports:  pdf.NewGenerator("ARS"),
		Sync: cloudsync.Options{
			AfterFunc: func(time.Duration, func()) cloudsync.Timer { return idleTimer{} },
		},
		DefaultLegend: pdf.DefaultLegend,
		Now:           func() time.Time { return fixedNow },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%02d", seq)
		},
	}, zerolog.Nop())
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })
	return &fixture{remote: mem, profiles: profiles, sessions: sessions}
}

func (f *fixture) seed(t *testing.T, state model.State) {
	t.Helper()
	for _, kind := range model.Kinds {
		if state.Len(kind) == 0 {
			continue
		}
		if err := f.remote.Upsert(context.Background(), string(kind), remote.EncodeKind(state, kind)); err != nil {
			t.Fatalf("seed %s: %v", kind, err)
		}
	}
}

func seededState() model.State {
	state := model.NewState()
	state.Contractors = append(state.Contractors, model.Contractor{ID: "c1", Name: "Vial Sur", TaxID: "30-1"})
	state.Projects = append(state.Projects, model.Project{ID: "p1", Name: "Ruta 3", FileNumber: "EX-1/24", Budget: 1000, AdvanceAmount: 100, AdvanceRecoveryRate: 10, ContractorID: "c1", Status: model.ProjectStatusActive})
	state.Certificates = append(state.Certificates, model.Certificate{ID: "k1", ProjectID: "p1", Period: "2024-05", FinancialAmount: 200, AdvanceAmortization: 20, Timestamp: fixedNow})
	return state
}

func TestOpenLoadsRemoteState(t *testing.T) {
	f := newFixture(t)
	f.seed(t, seededState())

	w, err := f.sessions.Open(context.Background(), "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	state := w.State()
	if len(state.Projects) != 1 || len(state.Certificates) != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
	if w.Sync().Status != cloudsync.StatusConnected {
		t.Fatalf("status = %s", w.Sync().Status)
	}

	again, _ := f.sessions.Open(context.Background(), "u1")
	if again != w || f.remote.Calls("select", "projects") != 1 {
		t.Fatalf("expected the existing workspace to be reused")
	}
}

// gatedRemote holds every read until release is closed.
type gatedRemote struct {
	*repository.MemoryRemote
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) SelectAll(ctx context.Context, table string) ([]remote.Row, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.MemoryRemote.SelectAll(ctx, table)
}

func TestOpenWaitsForInitialLoad(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryRemote()
	seed := model.NewState()
	seed.Contractors = append(seed.Contractors, model.Contractor{ID: "c1", Name: "Vial Sur", TaxID: "30-1"})
	if err := mem.Upsert(ctx, string(model.KindContractors), remote.EncodeKind(seed, model.KindContractors)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	gate := &gatedRemote{MemoryRemote: mem, entered: make(chan struct{}), release: make(chan struct{})}
	sessions := NewSessions(Dependencies{
		Remote:   gate,
		Profiles: repository.NewMemoryProfiles(),
		Reports:  pdf.NewGenerator("ARS"),
		Sync: cloudsync.Options{
			AfterFunc: func(time.Duration, func()) cloudsync.Timer { return idleTimer{} },
		},
		Now:   func() time.Time { return fixedNow },
		NewID: func() string { return "c2" },
	}, zerolog.Nop())

	first := make(chan *Workspace, 1)
	go func() {
		w, _ := sessions.Open(ctx, "u1")
		first <- w
	}()
	<-gate.entered

	second := make(chan error, 1)
	go func() {
		w, err := sessions.Open(ctx, "u1")
		if err == nil {
			_, err = w.CreateContractor(ContractorInput{Name: "Hormigones SA", TaxID: "30-2"})
		}
		second <- err
	}()
	select {
	case err := <-second:
		t.Fatalf("second open returned before the initial load finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	w := <-first
	if err := <-second; err != nil {
		t.Fatalf("create during load: %v", err)
	}
	if got := len(w.State().Contractors); got != 2 {
		t.Fatalf("local contractors = %d, want 2", got)
	}
	if _, _, err := sessions.Close(ctx, "u1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(mem.Rows(string(model.KindContractors))); got != 2 {
		t.Fatalf("remote contractors = %d, want 2", got)
	}
}

func TestOpenWithFailingRemoteReportsError(t *testing.T) {
	f := newFixture(t)
	f.remote.Fail("select", "payments", errors.New("connection refused"))

	w, err := f.sessions.Open(context.Background(), "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if w.Sync().Status != cloudsync.StatusError || !w.State().Empty() {
		t.Fatalf("expected error status and empty state, got %s", w.Sync().Status)
	}
	if err := w.Refresh(context.Background()); !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
}

func TestRecordLifecycleIsPushedOnClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.sessions.Open(ctx, "u1")

	c, err := w.CreateContractor(ContractorInput{Name: " Hormigones SA ", TaxID: "30-9"})
	if err != nil {
		t.Fatalf("contractor: %v", err)
	}
	if c.Name != "Hormigones SA" {
		t.Fatalf("name not trimmed: %q", c.Name)
	}
	p, err := w.CreateProject(ProjectInput{Name: "Hospital", FileNumber: "EX-9", Budget: 5000, AdvanceRecoveryRate: 15, ContractorID: c.ID})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if p.Status != model.ProjectStatusActive {
		t.Fatalf("default status = %s", p.Status)
	}
	cert, err := w.AddCertificate(CertificateInput{ProjectID: p.ID, Period: "2024-06", PhysicalProgress: 10, FinancialAmount: 1000})
	if err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if cert.AdvanceAmortization != 150 || !cert.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected certificate %+v", cert)
	}
	if _, err := w.AddPayment(PaymentInput{ProjectID: p.ID, Amount: 400, Date: fixedNow}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	s, err := w.ProjectSummary(p.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Debt != 450 || s.Status != reconcile.DebtPending {
		t.Fatalf("unexpected summary %+v", s)
	}
	if got := w.Summary(); got.Pending != 1 || got.TotalBudget != 5000 {
		t.Fatalf("unexpected portfolio %+v", got)
	}

	if len(f.remote.Rows("projects")) != 0 {
		t.Fatalf("push should wait for the debounce window")
	}
	report, pushed, err := f.sessions.Close(ctx, "u1")
	if err != nil || !pushed {
		t.Fatalf("close: pushed=%v err=%v", pushed, err)
	}
	for _, kind := range model.Kinds {
		if report.Outcomes[kind] != cloudsync.PushPushed {
			t.Fatalf("%s outcome = %s", kind, report.Outcomes[kind])
		}
	}
	if len(f.remote.Rows("payments")) != 1 || f.sessions.Len() != 0 {
		t.Fatalf("expected payment pushed and session dropped")
	}
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, seededState())
	w, _ := f.sessions.Open(context.Background(), "u1")

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"contractor without name", func() error { _, err := w.CreateContractor(ContractorInput{TaxID: "1"}); return err }, ErrInvalidInput},
		{"project unknown contractor", func() error {
			_, err := w.CreateProject(ProjectInput{Name: "x", FileNumber: "1", ContractorID: "nope"})
			return err
		}, ErrInvalidInput},
		{"project bad rate", func() error {
			_, err := w.CreateProject(ProjectInput{Name: "x", FileNumber: "1", ContractorID: "c1", AdvanceRecoveryRate: 120})
			return err
		}, ErrInvalidInput},
		{"project bad status", func() error {
			_, err := w.CreateProject(ProjectInput{Name: "x", FileNumber: "1", ContractorID: "c1", Status: "cancelled"})
			return err
		}, ErrInvalidInput},
		{"update missing project", func() error {
			_, err := w.UpdateProject("p9", ProjectInput{Name: "x", FileNumber: "1", ContractorID: "c1"})
			return err
		}, ErrNotFound},
		{"certificate unknown project", func() error {
			_, err := w.AddCertificate(CertificateInput{ProjectID: "p9", Period: "2024-01", FinancialAmount: 1})
			return err
		}, ErrNotFound},
		{"payment zero amount", func() error {
			_, err := w.AddPayment(PaymentInput{ProjectID: "p1", Date: fixedNow})
			return err
		}, ErrInvalidInput},
		{"payment unknown project", func() error {
			_, err := w.AddPayment(PaymentInput{ProjectID: "p9", Amount: 1, Date: fixedNow})
			return err
		}, ErrNotFound},
		{"delete missing", func() error { return w.Delete(context.Background(), model.KindPayments, "y9") }, ErrNotFound},
		{"project summary missing", func() error { _, err := w.ProjectSummary("p9"); return err }, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDeleteReferencedProjectIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, seededState())
	w, _ := f.sessions.Open(context.Background(), "u1")

	err := w.Delete(context.Background(), model.KindProjects, "p1")
	if !errors.Is(err, cloudsync.ErrLinkedRecords) {
		t.Fatalf("expected ErrLinkedRecords, got %v", err)
	}
	if len(w.State().Projects) != 1 {
		t.Fatalf("project removed locally despite remote rejection")
	}

	if err := w.Delete(context.Background(), model.KindCertificates, "k1"); err != nil {
		t.Fatalf("delete certificate: %v", err)
	}
	if err := w.Delete(context.Background(), model.KindProjects, "p1"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if len(w.State().Projects) != 0 || len(f.remote.Rows("projects")) != 0 {
		t.Fatalf("project should be gone locally and remotely")
	}
}

func TestImportRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.sessions.Open(ctx, "u1")

	data, err := excel.Export(seededState())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := w.ImportBackup(bytes.NewReader(data), false); !errors.Is(err, ErrImportNotConfirmed) {
		t.Fatalf("expected ErrImportNotConfirmed, got %v", err)
	}
	if !w.State().Empty() {
		t.Fatalf("state changed without confirmation")
	}
	if _, err := w.ImportBackup(bytes.NewReader([]byte("junk")), true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	res, err := w.ImportBackup(bytes.NewReader(data), true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Projects != 1 || res.Certificates != 1 || res.Payments != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, _, err := f.sessions.Close(ctx, "u1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(f.remote.Rows("certificates")) != 1 {
		t.Fatalf("imported records were not pushed")
	}
}

func TestExportAndReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, seededState())
	if _, err := f.sessions.CreateProfile(ctx, "u1", ProfileInput{FullName: "Ing. Marta Ruiz", Position: "Directora"}); err != nil {
		t.Fatalf("profile: %v", err)
	}
	w, _ := f.sessions.Open(ctx, "u1")

	backup, err := w.ExportBackup()
	if err != nil || backup.FileName != "ObraApp_Backup_2024-07-09.xlsx" || len(backup.Content) == 0 {
		t.Fatalf("backup: %+v %v", backup, err)
	}

	report, err := w.ProjectReport(ctx, "p1")
	if err != nil || report.FileName != "Ficha_Obra_EX-1_24.pdf" || report.ContentType != "application/pdf" {
		t.Fatalf("project report: %+v %v", report, err)
	}
	if _, err := w.ProjectReport(ctx, "p9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	portfolio, err := w.PortfolioReport(ctx)
	if err != nil || portfolio.FileName != "Reporte_General_Obras_09-07-2024.pdf" {
		t.Fatalf("portfolio report: %+v %v", portfolio, err)
	}
}

func TestProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sessions.Profile(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.sessions.CreateProfile(ctx, "u1", ProfileInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.sessions.CreateProfile(ctx, "u1", ProfileInput{FullName: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := f.sessions.UpdateBranding(ctx, "u1", BrandingInput{Legend: " Municipio de Tandil "})
	if err != nil {
		t.Fatalf("branding: %v", err)
	}
	if p.ReportLegend != "Municipio de Tandil" || p.FullName != "Ana" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := f.sessions.UpdateBranding(ctx, "u2", BrandingInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommandsAfterCloseAreRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, seededState())
	w, _ := f.sessions.Open(ctx, "u1")
	if _, _, err := f.sessions.Close(ctx, "u1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := w.CreateContractor(ContractorInput{Name: "Tardío", TaxID: "30-3"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("create contractor: expected ErrSessionClosed, got %v", err)
	}
	if _, err := w.AddPayment(PaymentInput{ProjectID: "p1", Amount: 10, Date: fixedNow}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("add payment: expected ErrSessionClosed, got %v", err)
	}
	if _, err := w.ImportBackup(bytes.NewReader(nil), true); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("import: expected ErrSessionClosed, got %v", err)
	}
	if got := len(w.State().Payments); got != 0 {
		t.Fatalf("payments after close = %d", got)
	}
	if got := len(f.remote.Rows(string(model.KindContractors))); got != 1 {
		t.Fatalf("remote contractors = %d, want 1", got)
	}
}

func TestCloseUnknownSession(t *testing.T) {
	f := newFixture(t)
	if _, pushed, err := f.sessions.Close(context.Background(), "ghost"); pushed || err != nil {
		t.Fatalf("pushed=%v err=%v", pushed, err)
	}
	if _, err := f.sessions.Open(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
