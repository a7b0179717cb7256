package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/domain/settings"
	"goodies-platform/internal/middleware"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/payments/stripe"
	"goodies-platform/internal/repository/memory"
	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"
)

type adminFixture struct {
	router   *gin.Engine
	store    *memory.Store
	settings *services.SettingsService
	token    string
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	auth := services.NewAdminAuthService("jwt-secret", string(hash), time.Minute)
	token, _, err := auth.IssueToken("test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store := memory.NewStore()
	store.PutCampaign(campaign.Campaign{ID: "camp_1", Title: "Clean Water", GoalCents: 10000, CurrentAmountCents: 2500, Backers: 1, Currency: "USD"})
	settingsSvc := services.NewSettingsService(settings.Runtime{}, nil, logger.NewNop())
	reconciler := services.NewReconciler(store)
	replay := services.NewReplayService(memory.NewFailures(), payments.NewRegistry(stripe.New(testSecret, 0)), reconciler, nil, logger.NewNop())
	h := NewAdminHandler(auth, settingsSvc, replay, reconciler, nil, logger.NewNop())

	r := gin.New()
	r.POST("/v1/admin/token", h.Token)
	protected := r.Group("/v1/admin", middleware.AdminAuth(auth))
	protected.GET("/maintenance", h.GetMaintenance)
	protected.POST("/maintenance", h.SetMaintenance)
	protected.GET("/reconciliation-failures", h.ListFailures)
	protected.POST("/reconciliation-failures/:id/replay", h.ReplayFailure)
	protected.POST("/donations/:id/refund", h.RefundDonation)

	return &adminFixture{router: r, store: store, settings: settingsSvc, token: token}
}

func (f *adminFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAdminToken(t *testing.T) {
	t.Parallel()

	f := newAdminFixture(t)
	if w := f.do(http.MethodPost, "/v1/admin/token", gin.H{"admin_key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: got %d", w.Code)
	}
	w := f.do(http.MethodPost, "/v1/admin/token", gin.H{"admin_key": "operator-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d %s", w.Code, w.Body.String())
	}
	var res httpdto.Response[httpdto.AdminTokenResponse]
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Data.AccessToken == "" || res.Data.ExpiresIn != 60 {
		t.Fatalf("unexpected token response %+v", res.Data)
	}
}

func TestAdminMaintenanceToggle(t *testing.T) {
	t.Parallel()

	f := newAdminFixture(t)
	if w := f.do(http.MethodPost, "/v1/admin/maintenance", gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing enabled: got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/v1/admin/maintenance", gin.H{"enabled": true}); w.Code != http.StatusOK {
		t.Fatalf("enable: got %d", w.Code)
	}
	if !f.settings.Maintenance() {
		t.Fatal("maintenance not applied")
	}

	w := f.do(http.MethodGet, "/v1/admin/maintenance", nil)
	var res httpdto.Response[httpdto.MaintenanceResponse]
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Data.Enabled {
		t.Fatalf("expected enabled, got %+v", res.Data)
	}
}

func TestAdminRefundDonation(t *testing.T) {
	t.Parallel()

	f := newAdminFixture(t)
	id := uuid.New()
	f.store.PutDonation(donation.Donation{
		ID:            id,
		CampaignID:    "camp_1",
		AmountCents:   2500,
		Currency:      "USD",
		PaymentMethod: donation.MethodStripe,
		Status:        donation.StatusCompleted,
	})

	w := f.do(http.MethodPost, "/v1/admin/donations/"+id.String()+"/refund", gin.H{"reason": "duplicate charge"})
	if w.Code != http.StatusOK {
		t.Fatalf("refund: got %d %s", w.Code, w.Body.String())
	}
	var res httpdto.Response[httpdto.ReconciliationDTO]
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Data.Outcome != "refunded" || res.Data.Totals == nil || res.Data.Totals.CurrentAmountCents != 0 {
		t.Fatalf("unexpected refund result %+v", res.Data)
	}

	if w := f.do(http.MethodPost, "/v1/admin/donations/"+id.String()+"/refund", nil); w.Code != http.StatusConflict {
		t.Fatalf("second refund: got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/v1/admin/donations/not-a-uuid/refund", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/v1/admin/donations/"+uuid.NewString()+"/refund", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: got %d", w.Code)
	}
}

func TestAdminListFailuresRejectsBadLimit(t *testing.T) {
	t.Parallel()

	f := newAdminFixture(t)
	if w := f.do(http.MethodGet, "/v1/admin/reconciliation-failures?limit=-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("got %d", w.Code)
	}
	w := f.do(http.MethodGet, "/v1/admin/reconciliation-failures", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/v1/admin/reconciliation-failures/"+uuid.NewString()+"/replay", nil); w.Code != http.StatusNotFound {
		t.Fatalf("replay unknown: got %d", w.Code)
	}
}
