package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"goodies-platform/internal/middleware"
	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"
)

const (
	defaultFailureLimit = 50
	maxFailureLimit     = 500
)

// AdminHandler serves the operator API under /v1/admin.
type AdminHandler struct {
	auth       *services.AdminAuthService
	settings   *services.SettingsService
	replay     *services.ReplayService
	reconciler *services.Reconciler
	totals     services.TotalsPublisher
	log        *logger.Logger
}

// NewAdminHandler creates an admin handler. totals may be nil.
func NewAdminHandler(
	auth *services.AdminAuthService,
	settings *services.SettingsService,
	replay *services.ReplayService,
	reconciler *services.Reconciler,
	totals services.TotalsPublisher,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		auth:       auth,
		settings:   settings,
		replay:     replay,
		reconciler: reconciler,
		totals:     totals,
		log:        log,
	}
}

// Token exchanges the admin key for a bearer token.
func (h *AdminHandler) Token(c *gin.Context) {
	var req httpdto.AdminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	token, expiresIn, err := h.auth.Login(req.AdminKey)
	if err != nil {
		h.log.Warn(c.Request.Context(), "admin login rejected", zap.String("client_ip", c.ClientIP()))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AdminTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	}))
}

func (h *AdminHandler) GetMaintenance(c *gin.Context) {
	current := h.settings.Get()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MaintenanceResponse{
		Enabled:   current.Maintenance,
		UpdatedAt: current.UpdatedAt,
	}))
}

func (h *AdminHandler) SetMaintenance(c *gin.Context) {
	var req httpdto.MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	next, err := h.settings.SetMaintenance(c.Request.Context(), *req.Enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	h.log.Info(c.Request.Context(), "maintenance mode changed",
		zap.Bool("enabled", next.Maintenance),
		zap.String("admin", middleware.AdminSubject(c)),
	)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MaintenanceResponse{
		Enabled:   next.Maintenance,
		UpdatedAt: next.UpdatedAt,
	}))
}

// ListFailures returns open failures unless ?all=true.
func (h *AdminHandler) ListFailures(c *gin.Context) {
	limit := defaultFailureLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
			return
		}
		limit = min(n, maxFailureLimit)
	}
	onlyOpen := c.Query("all") != "true"

	failures, err := h.replay.List(c.Request.Context(), onlyOpen, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.ReconciliationFailureDTO, 0, len(failures))
	for _, f := range failures {
		out = append(out, httpdto.FailureFromDomain(f))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *AdminHandler) ReplayFailure(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid failure id", "INVALID_REQUEST"))
		return
	}
	rec, err := h.replay.Replay(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(reconciliationDTO(rec)))
}

// RefundDonation moves a completed donation to refunded.
func (h *AdminHandler) RefundDonation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid donation id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "refunded_by_admin"
	}

	rec, err := h.reconciler.Refund(c.Request.Context(), id, reason)
	if err != nil {
		writeError(c, err)
		return
	}
	h.log.Info(c.Request.Context(), "donation refunded",
		zap.String("donation_id", id.String()),
		zap.String("admin", middleware.AdminSubject(c)),
	)
	if rec.Totals != nil && h.totals != nil {
		if err := h.totals.PublishTotals(c.Request.Context(), *rec.Totals); err != nil {
			h.log.Warn(c.Request.Context(), "publish campaign totals failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(reconciliationDTO(rec)))
}

func reconciliationDTO(rec services.Reconciliation) httpdto.ReconciliationDTO {
	out := httpdto.ReconciliationDTO{Outcome: string(rec.Outcome)}
	if rec.Donation.ID != uuid.Nil {
		out.DonationID = rec.Donation.ID.String()
		out.Status = string(rec.Donation.Status)
	}
	if rec.Totals != nil {
		t := httpdto.CampaignFromTotals(*rec.Totals)
		out.Totals = &t
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), middleware.ErrorCode(status)))
}
