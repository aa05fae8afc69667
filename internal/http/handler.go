package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/http/middleware"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/repository"
	"github.com/nurpe/obras-service/internal/service"
)

const maxBackupSize = 32 << 20

type Handler struct {
	sessions *service.Sessions
	log      zerolog.Logger
}

func NewHandler(sessions *service.Sessions, log zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, log: log.With().Str("component", "http").Logger()}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/status", h.status)
	protected.POST("/sync/refresh", h.refresh)
	protected.GET("/state", h.state)

	protected.POST("/contractors", h.createContractor)
	protected.PUT("/contractors/:id", h.updateContractor)
	protected.DELETE("/contractors/:id", h.deleteRecord(model.KindContractors))

	protected.POST("/projects", h.createProject)
	protected.PUT("/projects/:id", h.updateProject)
	protected.DELETE("/projects/:id", h.deleteRecord(model.KindProjects))
	protected.GET("/projects/:id/summary", h.projectSummary)

	protected.POST("/certificates", h.addCertificate)
	protected.DELETE("/certificates/:id", h.deleteRecord(model.KindCertificates))

	protected.POST("/payments", h.addPayment)
	protected.DELETE("/payments/:id", h.deleteRecord(model.KindPayments))

	protected.GET("/summary", h.summary)

	protected.GET("/backup/xlsx", h.exportBackup)
	protected.POST("/backup/xlsx", h.importBackup)

	protected.GET("/reports/portfolio", h.portfolioReport)
	protected.GET("/reports/projects/:id", h.projectReport)

	protected.GET("/profile", h.getProfile)
	protected.POST("/profile", h.createProfile)
	protected.PUT("/profile", h.updateBranding)

	protected.POST("/session/close", h.closeSession)
}

// workspace resolves the caller's workspace, writing the error response
// itself when it fails.
func (h *Handler) workspace(c *gin.Context) (*service.Workspace, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return nil, false
	}
	w, err := h.sessions.Open(c.Request.Context(), principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return w, true
}

func (h *Handler) status(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Sync())
}

func (h *Handler) refresh(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := w.Refresh(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.Sync())
}

func (h *Handler) state(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.State())
}

func (h *Handler) createContractor(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req service.ContractorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contractor, err := w.CreateContractor(req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contractor)
}

func (h *Handler) updateContractor(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req service.ContractorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contractor, err := w.UpdateContractor(c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractor)
}

type projectRequest struct {
	Name                string  `json:"name"`
	FileNumber          string  `json:"fileNumber"`
	Budget              float64 `json:"budget"`
	AdvanceAmount       float64 `json:"advanceAmount"`
	AdvanceRecoveryRate float64 `json:"advanceRecoveryRate"`
	ContractorID        string  `json:"contractorId"`
	StartDate           string  `json:"startDate"`
	Status              string  `json:"status"`
}

func (r projectRequest) input() (service.ProjectInput, error) {
	in := service.ProjectInput{
		Name:                r.Name,
		FileNumber:          r.FileNumber,
		Budget:              r.Budget,
		AdvanceAmount:       r.AdvanceAmount,
		AdvanceRecoveryRate: r.AdvanceRecoveryRate,
		ContractorID:        r.ContractorID,
		Status:              model.ProjectStatus(strings.ToLower(strings.TrimSpace(r.Status))),
	}
	if strings.TrimSpace(r.StartDate) != "" {
		start, err := parseDate(r.StartDate)
		if err != nil {
			return in, err
		}
		in.StartDate = start
	}
	return in, nil
}

func (h *Handler) createProject(c *gin.Context) {
	h.saveProject(c, "")
}

func (h *Handler) updateProject(c *gin.Context) {
	h.saveProject(c, c.Param("id"))
}

func (h *Handler) saveProject(c *gin.Context, id string) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.input()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
		return
	}

	var project model.Project
	status := http.StatusCreated
	if id == "" {
		project, err = w.CreateProject(in)
	} else {
		project, err = w.UpdateProject(id, in)
		status = http.StatusOK
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(status, project)
}

func (h *Handler) addCertificate(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req service.CertificateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cert, err := w.AddCertificate(req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

type paymentRequest struct {
	ProjectID string  `json:"projectId"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date" binding:"required"`
	Reference string  `json:"reference"`
}

func (h *Handler) addPayment(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	payment, err := w.AddPayment(service.PaymentInput{
		ProjectID: req.ProjectID,
		Amount:    req.Amount,
		Date:      date,
		Reference: req.Reference,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) deleteRecord(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := h.workspace(c)
		if !ok {
			return
		}
		if err := w.Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
			h.handleError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) summary(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Summary())
}

func (h *Handler) projectSummary(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	s, err := w.ProjectSummary(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) exportBackup(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	result, err := w.ExportBackup()
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

// importBackup accepts the workbook as a multipart "file" field or as the raw
// request body.
func (h *Handler) importBackup(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))

	var body io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxBackupSize)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer file.Close()
		body = file
	}

	result, err := w.ImportBackup(body, confirmed)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) portfolioReport(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	result, err := w.PortfolioReport(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) projectReport(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	result, err := w.ProjectReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) getProfile(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	p, err := h.sessions.Profile(c.Request.Context(), principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) createProfile(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req service.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.sessions.CreateProfile(c.Request.Context(), principal.UserID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) updateBranding(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req service.BrandingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.sessions.UpdateBranding(c.Request.Context(), principal.UserID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) closeSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	report, pushed, err := h.sessions.Close(c.Request.Context(), principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	resp := gin.H{"flushed": pushed}
	if pushed {
		resp["push"] = report
	}
	c.JSON(http.StatusOK, resp)
}

func sendFile(c *gin.Context, result *service.FileResult) {
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cloudsync.ErrLinkedRecords):
		c.JSON(http.StatusConflict, gin.H{"error": cloudsync.ErrLinkedRecords.Error()})
	case errors.Is(err, service.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrSessionClosed.Error()})
	case errors.Is(err, service.ErrImportNotConfirmed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrProfileSchema):
		c.JSON(http.StatusFailedDependency, gin.H{"error": repository.ErrProfileSchema.Error()})
	case errors.Is(err, repository.ErrProfileTableMissing):
		c.JSON(http.StatusFailedDependency, gin.H{"error": repository.ErrProfileTableMissing.Error()})
	case errors.Is(err, repository.ErrSchema):
		c.JSON(http.StatusFailedDependency, gin.H{"error": "remote schema is out of date; apply the service migrations"})
	case errors.Is(err, service.ErrRemote):
		h.log.Warn().Err(err).Msg("remote store failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": service.ErrRemote.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
