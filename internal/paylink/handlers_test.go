package paylink

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/splitpay/internal/auth"
)

func setupTestRouter(t *testing.T, caller string) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	svc := NewService(store, &mockLedger{}, nil)
	if err := svc.Initialize(context.Background(), owner); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(func(c *gin.Context) {
		if caller != "" {
			c.Set(auth.ContextKeyAccountAddr, caller)
		}
		c.Next()
	})

	h := NewHandler(svc)
	h.RegisterRoutes(v1)
	h.RegisterProtectedRoutes(v1)
	h.RegisterAdminRoutes(v1)

	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateLink(t *testing.T) {
	r, _ := setupTestRouter(t, creator)

	w := doJSON(t, r, http.MethodPost, "/v1/links", CreateLinkRequest{
		PaymentID: "p1",
		Payments:  twoPayments(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body)
	}

	var resp struct {
		Link PaymentLink `json:"link"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Link.PaymentID != "p1" || resp.Link.Status != StatusPending {
		t.Errorf("Unexpected link: %+v", resp.Link)
	}
}

func TestHandler_CreateLink_MissingPaymentID(t *testing.T) {
	r, _ := setupTestRouter(t, creator)

	w := doJSON(t, r, http.MethodPost, "/v1/links", gin.H{"payments": twoPayments()})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandler_CreateLink_BadDestination(t *testing.T) {
	r, _ := setupTestRouter(t, creator)

	w := doJSON(t, r, http.MethodPost, "/v1/links", CreateLinkRequest{
		PaymentID: "p1",
		Payments:  []IndividualPayment{{Amount: "100", Destination: "not-an-address"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid destination, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_CompleteFlow(t *testing.T) {
	r, svc := setupTestRouter(t, payer)

	if _, err := svc.CreateLink(context.Background(), "p1", twoPayments(), creator); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/v1/links/p1/required-amount", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	var quote struct {
		RequiredAmount string `json:"requiredAmount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.RequiredAmount != "151" {
		t.Errorf("Expected required amount 151, got %s", quote.RequiredAmount)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/links/p1/complete", CompleteRequest{CallValue: "151"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/links/p1/status", nil)
	var st struct {
		Status Status `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Status != StatusCompleted {
		t.Errorf("Expected completed, got %s", st.Status)
	}
}

func TestHandler_Complete_Underfunded402(t *testing.T) {
	r, svc := setupTestRouter(t, payer)

	if _, err := svc.CreateLink(context.Background(), "p1", twoPayments(), creator); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/links/p1/complete", CompleteRequest{CallValue: "10"})
	if w.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_Complete_NegativeCallValue400(t *testing.T) {
	r, _ := setupTestRouter(t, payer)

	w := doJSON(t, r, http.MethodPost, "/v1/links/p1/complete", CompleteRequest{CallValue: "-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_UnknownLink404(t *testing.T) {
	r, _ := setupTestRouter(t, payer)

	w := doJSON(t, r, http.MethodGet, "/v1/links/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Error != "not_found" {
		t.Errorf("Expected error code not_found, got %s", resp.Error)
	}
}

func TestHandler_Cancel_NonCreator403(t *testing.T) {
	r, svc := setupTestRouter(t, payer)

	if _, err := svc.CreateLink(context.Background(), "p1", twoPayments(), creator); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/links/p1/cancel", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_Complete_Twice409(t *testing.T) {
	r, svc := setupTestRouter(t, payer)
	ctx := context.Background()

	if _, err := svc.CreateLink(ctx, "p1", twoPayments(), creator); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	if _, err := svc.Complete(ctx, "p1", payer, big.NewInt(151)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/links/p1/complete", CompleteRequest{CallValue: "151"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_AdminRoutes(t *testing.T) {
	r, svc := setupTestRouter(t, owner)
	ctx := context.Background()

	w := doJSON(t, r, http.MethodPut, "/v1/admin/commission-rate", SetCommissionRateRequest{Rate: 7})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	rate, _ := svc.CommissionRate(ctx)
	if rate != 7 {
		t.Errorf("Expected live rate 7, got %d", rate)
	}

	w = doJSON(t, r, http.MethodPut, "/v1/admin/commission-rate", SetCommissionRateRequest{Rate: 101})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for rate 101, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/admin/disable", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	if enabled, _ := svc.IsEnabled(ctx); enabled {
		t.Error("Expected contract disabled")
	}

	// Disabled contract refuses link creation with 503.
	w = doJSON(t, r, http.MethodPost, "/v1/links", CreateLinkRequest{PaymentID: "p1"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 while disabled, got %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/admin/enable", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	w = doJSON(t, r, http.MethodPost, "/v1/admin/enable", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 enabling twice, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_AdminRoutes_NonOwner403(t *testing.T) {
	r, _ := setupTestRouter(t, payer)

	w := doJSON(t, r, http.MethodPut, "/v1/admin/commission-rate", SetCommissionRateRequest{Rate: 7})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", w.Code, w.Body)
	}
}

func TestHandler_ContractState(t *testing.T) {
	r, _ := setupTestRouter(t, "")

	w := doJSON(t, r, http.MethodGet, "/v1/contract", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Enabled        bool   `json:"enabled"`
		Owner          string `json:"owner"`
		CommissionRate uint64 `json:"commissionRate"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode contract state: %v", err)
	}
	if !resp.Enabled || resp.Owner != owner || resp.CommissionRate != QuotedCommissionRatePercent {
		t.Errorf("Unexpected contract state: %+v", resp)
	}
}
