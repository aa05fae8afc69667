package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/excel"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/pdf"
	"github.com/nurpe/obras-service/internal/reconcile"
	"github.com/nurpe/obras-service/internal/store"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

type ReportGenerator interface {
	ProjectReport(doc pdf.ProjectDocument) ([]byte, error)
	PortfolioReport(doc pdf.PortfolioDocument) ([]byte, error)
}

type FileResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

type ContractorInput struct {
	Name    string `json:"name"`
	TaxID   string `json:"taxId"`
	Contact string `json:"contact"`
}

type ProjectInput struct {
	Name                string              `json:"name"`
	FileNumber          string              `json:"fileNumber"`
	Budget              float64             `json:"budget"`
	AdvanceAmount       float64             `json:"advanceAmount"`
	AdvanceRecoveryRate float64             `json:"advanceRecoveryRate"`
	ContractorID        string              `json:"contractorId"`
	StartDate           time.Time           `json:"startDate"`
	Status              model.ProjectStatus `json:"status"`
}

type CertificateInput struct {
	ProjectID        string  `json:"projectId"`
	Period           string  `json:"period"`
	PhysicalProgress float64 `json:"physicalProgress"`
	FinancialAmount  float64 `json:"financialAmount"`
}

type PaymentInput struct {
	ProjectID string    `json:"projectId"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Reference string    `json:"reference"`
}

type SyncView struct {
	Status   cloudsync.Status      `json:"status"`
	LastPush *cloudsync.PushReport `json:"lastPush,omitempty"`
	PushErr  string                `json:"pushError,omitempty"`
}

type ImportResult struct {
	Contractors  int `json:"contractors"`
	Projects     int `json:"projects"`
	Certificates int `json:"certificates"`
	Payments     int `json:"payments"`
}

// Workspace is one user's session: a store kept in step with the remote
// tables by a sync engine.
type Workspace struct {
	userID string
	store  *store.Store
	engine *cloudsync.Engine
	deps   *Dependencies
	log    zerolog.Logger

	// ready is closed once the initial load has finished.
	ready chan struct{}

	// mu is held for reading by store commands and for writing by close.
	mu     sync.RWMutex
	closed bool
}

func (w *Workspace) UserID() string { return w.userID }

func (w *Workspace) State() model.State {
	return w.store.Snapshot()
}

func (w *Workspace) Sync() SyncView {
	view := SyncView{Status: w.engine.Status()}
	if report, ok := w.engine.LastPush(); ok {
		view.LastPush = &report
		if report.Err != nil {
			view.PushErr = report.Err.Error()
		}
	}
	return view
}

// Refresh reloads every table from the remote store.
func (w *Workspace) Refresh(ctx context.Context) error {
	err := w.engine.Load(ctx)
	if errors.Is(err, cloudsync.ErrStaleLoad) {
		// a newer load owns the result
		return nil
	}
	if err != nil {
		return remoteError(err)
	}
	return nil
}

// acquire blocks close until release is called. It fails once the
// workspace is closed.
func (w *Workspace) acquire() (release func(), err error) {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil, ErrSessionClosed
	}
	return w.mu.RUnlock, nil
}

func (w *Workspace) CreateContractor(in ContractorInput) (model.Contractor, error) {
	release, err := w.acquire()
	if err != nil {
		return model.Contractor{}, err
	}
	defer release()

	c := model.Contractor{
		ID:      w.deps.NewID(),
		Name:    strings.TrimSpace(in.Name),
		TaxID:   strings.TrimSpace(in.TaxID),
		Contact: strings.TrimSpace(in.Contact),
	}
	if err := validateContractor(c); err != nil {
		return model.Contractor{}, err
	}
	if err := w.store.AddContractor(c); err != nil {
		return model.Contractor{}, storeError(err)
	}
	return c, nil
}

func (w *Workspace) UpdateContractor(id string, in ContractorInput) (model.Contractor, error) {
	release, err := w.acquire()
	if err != nil {
		return model.Contractor{}, err
	}
	defer release()

	c := model.Contractor{
		ID:      id,
		Name:    strings.TrimSpace(in.Name),
		TaxID:   strings.TrimSpace(in.TaxID),
		Contact: strings.TrimSpace(in.Contact),
	}
	if err := validateContractor(c); err != nil {
		return model.Contractor{}, err
	}
	if err := w.store.UpdateContractor(c); err != nil {
		return model.Contractor{}, storeError(err)
	}
	return c, nil
}

func (w *Workspace) CreateProject(in ProjectInput) (model.Project, error) {
	release, err := w.acquire()
	if err != nil {
		return model.Project{}, err
	}
	defer release()

	p, err := w.buildProject(w.deps.NewID(), in)
	if err != nil {
		return model.Project{}, err
	}
	if err := w.store.AddProject(p); err != nil {
		return model.Project{}, storeError(err)
	}
	return p, nil
}

func (w *Workspace) UpdateProject(id string, in ProjectInput) (model.Project, error) {
	release, err := w.acquire()
	if err != nil {
		return model.Project{}, err
	}
	defer release()

	p, err := w.buildProject(id, in)
	if err != nil {
		return model.Project{}, err
	}
	if err := w.store.UpdateProject(p); err != nil {
		return model.Project{}, storeError(err)
	}
	return p, nil
}

func (w *Workspace) buildProject(id string, in ProjectInput) (model.Project, error) {
	p := model.Project{
		ID:                  id,
		Name:                strings.TrimSpace(in.Name),
		FileNumber:          strings.TrimSpace(in.FileNumber),
		Budget:              in.Budget,
		AdvanceAmount:       in.AdvanceAmount,
		AdvanceRecoveryRate: in.AdvanceRecoveryRate,
		ContractorID:        strings.TrimSpace(in.ContractorID),
		StartDate:           in.StartDate,
		Status:              in.Status,
	}
	if p.Status == "" {
		p.Status = model.ProjectStatusActive
	}
	switch {
	case p.Name == "":
		return p, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	case p.FileNumber == "":
		return p, fmt.Errorf("%w: file number is required", ErrInvalidInput)
	case p.Budget < 0 || p.AdvanceAmount < 0:
		return p, fmt.Errorf("%w: amounts must not be negative", ErrInvalidInput)
	case p.AdvanceRecoveryRate < 0 || p.AdvanceRecoveryRate > 100:
		return p, fmt.Errorf("%w: advance recovery rate must be between 0 and 100", ErrInvalidInput)
	case !p.Status.Valid():
		return p, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, p.Status)
	}
	if _, ok := w.store.Snapshot().FindContractor(p.ContractorID); !ok {
		return p, fmt.Errorf("%w: contractor %q does not exist", ErrInvalidInput, p.ContractorID)
	}
	return p, nil
}

// AddCertificate records a certificate. The advance amortization is derived
// from the project's recovery rate at this moment.
func (w *Workspace) AddCertificate(in CertificateInput) (model.Certificate, error) {
	release, err := w.acquire()
	if err != nil {
		return model.Certificate{}, err
	}
	defer release()

	c := model.Certificate{
		ID:               w.deps.NewID(),
		ProjectID:        strings.TrimSpace(in.ProjectID),
		Period:           strings.TrimSpace(in.Period),
		PhysicalProgress: in.PhysicalProgress,
		FinancialAmount:  in.FinancialAmount,
		Timestamp:        w.deps.Now().UTC(),
	}
	switch {
	case c.Period == "":
		return model.Certificate{}, fmt.Errorf("%w: period is required", ErrInvalidInput)
	case c.FinancialAmount < 0:
		return model.Certificate{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	case c.PhysicalProgress < 0 || c.PhysicalProgress > 100:
		return model.Certificate{}, fmt.Errorf("%w: physical progress must be between 0 and 100", ErrInvalidInput)
	}
	stored, err := w.store.AddCertificate(c)
	if err != nil {
		return model.Certificate{}, storeError(err)
	}
	return stored, nil
}

func (w *Workspace) AddPayment(in PaymentInput) (model.Payment, error) {
	release, err := w.acquire()
	if err != nil {
		return model.Payment{}, err
	}
	defer release()

	p := model.Payment{
		ID:        w.deps.NewID(),
		ProjectID: strings.TrimSpace(in.ProjectID),
		Amount:    in.Amount,
		Date:      in.Date,
		Reference: strings.TrimSpace(in.Reference),
	}
	switch {
	case p.Amount <= 0:
		return model.Payment{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	case p.Date.IsZero():
		return model.Payment{}, fmt.Errorf("%w: payment date is required", ErrInvalidInput)
	}
	if _, ok := w.store.Snapshot().FindProject(p.ProjectID); !ok {
		return model.Payment{}, fmt.Errorf("%w: project %s", ErrNotFound, p.ProjectID)
	}
	if err := w.store.AddPayment(p); err != nil {
		return model.Payment{}, storeError(err)
	}
	return p, nil
}

// Delete removes a record remotely and then locally.
func (w *Workspace) Delete(ctx context.Context, kind model.Kind, id string) error {
	if !hasRecord(w.store.Snapshot(), kind, id) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	err := w.engine.Delete(ctx, kind, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cloudsync.ErrLinkedRecords):
		return err
	default:
		return remoteError(err)
	}
}

func (w *Workspace) Summary() reconcile.Portfolio {
	return reconcile.SummarizePortfolio(w.store.Snapshot())
}

func (w *Workspace) ProjectSummary(id string) (reconcile.ProjectSummary, error) {
	s, ok := reconcile.SummarizeProjectByID(w.store.Snapshot(), id)
	if !ok {
		return reconcile.ProjectSummary{}, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return s, nil
}

func (w *Workspace) ExportBackup() (*FileResult, error) {
	content, err := excel.Export(w.store.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("export backup: %w", err)
	}
	return &FileResult{
		FileName:    excel.BackupFileName(w.deps.Now()),
		ContentType: contentTypeXLSX,
		Content:     content,
	}, nil
}

// ImportBackup replaces every record with the workbook contents. The
// replacement is pushed to the remote store like any local change.
func (w *Workspace) ImportBackup(r io.Reader, confirmed bool) (ImportResult, error) {
	if !confirmed {
		return ImportResult{}, ErrImportNotConfirmed
	}
	release, err := w.acquire()
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	state, err := excel.Import(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	w.store.Replace(state, store.OriginImport)
	w.log.Info().
		Int("contractors", len(state.Contractors)).
		Int("projects", len(state.Projects)).
		Int("certificates", len(state.Certificates)).
		Int("payments", len(state.Payments)).
		Msg("backup imported")
	return ImportResult{
		Contractors:  len(state.Contractors),
		Projects:     len(state.Projects),
		Certificates: len(state.Certificates),
		Payments:     len(state.Payments),
	}, nil
}

func (w *Workspace) ProjectReport(ctx context.Context, id string) (*FileResult, error) {
	state := w.store.Snapshot()
	summary, ok := reconcile.SummarizeProjectByID(state, id)
	if !ok {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	contractor, _ := state.FindContractor(summary.Project.ContractorID)
	profile := w.reportProfile(ctx)

	content, err := w.deps.Reports.ProjectReport(pdf.ProjectDocument{
		Branding:     w.branding(profile),
		Summary:      summary,
		Contractor:   contractor,
		Certificates: state.CertificatesFor(id),
		Payments:     state.PaymentsFor(id),
		GeneratedAt:  w.deps.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("render project report: %w", err)
	}
	return &FileResult{
		FileName:    pdf.ProjectFileName(summary.Project.FileNumber),
		ContentType: contentTypePDF,
		Content:     content,
	}, nil
}

func (w *Workspace) PortfolioReport(ctx context.Context) (*FileResult, error) {
	state := w.store.Snapshot()
	profile := w.reportProfile(ctx)
	now := w.deps.Now()

	content, err := w.deps.Reports.PortfolioReport(pdf.PortfolioDocument{
		Branding:    w.branding(profile),
		IssuedBy:    profile.FullName,
		Portfolio:   reconcile.SummarizePortfolio(state),
		Contractors: state.Contractors,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("render portfolio report: %w", err)
	}
	return &FileResult{
		FileName:    pdf.PortfolioFileName(now),
		ContentType: contentTypePDF,
		Content:     content,
	}, nil
}

// reportProfile falls back to an empty profile: reports render with the
// default header when branding cannot be read.
func (w *Workspace) reportProfile(ctx context.Context) model.Profile {
	p, err := w.deps.Profiles.Get(ctx, w.userID)
	if err != nil {
		w.log.Warn().Err(err).Msg("profile unavailable for report header")
		return model.Profile{}
	}
	return *p
}

func (w *Workspace) branding(p model.Profile) pdf.Branding {
	legend := p.ReportLegend
	if strings.TrimSpace(legend) == "" {
		legend = w.deps.DefaultLegend
	}
	return pdf.Branding{Logo: p.ReportLogo, Legend: legend}
}

// close rejects further commands, pushes pending changes and detaches the
// engine.
func (w *Workspace) close(ctx context.Context) (cloudsync.PushReport, bool) {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	report, pushed := w.engine.Flush(ctx)
	w.engine.Close()
	return report, pushed
}

func validateContractor(c model.Contractor) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: contractor name is required", ErrInvalidInput)
	case c.TaxID == "":
		return fmt.Errorf("%w: tax id is required", ErrInvalidInput)
	}
	return nil
}

func hasRecord(state model.State, kind model.Kind, id string) bool {
	switch kind {
	case model.KindContractors:
		_, ok := state.FindContractor(id)
		return ok
	case model.KindProjects:
		_, ok := state.FindProject(id)
		return ok
	case model.KindCertificates:
		for _, c := range state.Certificates {
			if c.ID == id {
				return true
			}
		}
	case model.KindPayments:
		for _, p := range state.Payments {
			if p.ID == id {
				return true
			}
		}
	}
	return false
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrProjectNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicateID):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}

func remoteError(err error) error {
	if errors.Is(err, cloudsync.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}
	return fmt.Errorf("%w: %w", ErrRemote, err)
}

func newID() string {
	return uuid.NewString()
}
