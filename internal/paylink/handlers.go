package paylink

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/splitpay/internal/amount"
	"github.com/mbd888/splitpay/internal/auth"
	"github.com/mbd888/splitpay/internal/validation"
)

// Handler provides HTTP endpoints for payment link operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment link handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/links/:id", h.GetLink)
	r.GET("/links/:id/status", h.GetPaymentStatus)
	r.GET("/links/:id/required-amount", h.GetRequiredAmount)
	r.GET("/contract", h.GetContractState)
}

// RegisterProtectedRoutes sets up auth-required routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/links", h.CreatePaymentLink)
	r.POST("/links/:id/complete", h.CompletePayment)
	r.POST("/links/:id/cancel", h.CancelPayment)
}

// RegisterAdminRoutes sets up owner-only routes. Ownership itself is
// enforced by the service against the stored settings; these routes only
// require an authenticated caller.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.PUT("/admin/commission-rate", h.SetCommissionRate)
	r.POST("/admin/disable", h.DisableContract)
	r.POST("/admin/enable", h.EnableContract)
}

// CreateLinkRequest contains the parameters for creating a payment link.
type CreateLinkRequest struct {
	PaymentID string              `json:"paymentId" binding:"required"`
	Payments  []IndividualPayment `json:"payments"`
}

// CompleteRequest carries the value attached to a completion call.
type CompleteRequest struct {
	CallValue string `json:"callValue" binding:"required"`
}

// SetCommissionRateRequest contains the new live commission rate.
type SetCommissionRateRequest struct {
	Rate uint64 `json:"rate"`
}

// CreatePaymentLink handles POST /v1/links
func (h *Handler) CreatePaymentLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "paymentId is required",
		})
		return
	}

	validators := []func() *validation.ValidationError{
		validation.MaxLength("paymentId", req.PaymentID, validation.MaxPaymentIDLength),
	}
	if len(req.Payments) > validation.MaxPaymentsPerLink {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "too many payments in one link",
		})
		return
	}
	for _, p := range req.Payments {
		validators = append(validators,
			validation.Required("destination", p.Destination),
			validation.ValidAddress("destination", p.Destination),
			validation.ValidAmount("amount", p.Amount),
		)
	}
	if errs := validation.Validate(validators...); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	payments := make([]IndividualPayment, len(req.Payments))
	for i, p := range req.Payments {
		payments[i] = IndividualPayment{
			Amount:      p.Amount,
			Destination: validation.SanitizeAddress(p.Destination),
		}
	}

	link, err := h.service.CreateLink(c.Request.Context(), req.PaymentID, payments, auth.CallerAddress(c))
	if err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// CompletePayment handles POST /v1/links/:id/complete
func (h *Handler) CompletePayment(c *gin.Context) {
	id := c.Param("id")

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "callValue is required",
		})
		return
	}

	callValue, ok := amount.Parse(req.CallValue)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "callValue must be a non-negative integer amount",
		})
		return
	}

	link, err := h.service.Complete(c.Request.Context(), id, auth.CallerAddress(c), callValue)
	if err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

// CancelPayment handles POST /v1/links/:id/cancel
func (h *Handler) CancelPayment(c *gin.Context) {
	id := c.Param("id")

	link, err := h.service.Cancel(c.Request.Context(), id, auth.CallerAddress(c))
	if err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

// GetLink handles GET /v1/links/:id
func (h *Handler) GetLink(c *gin.Context) {
	link, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

// GetPaymentStatus handles GET /v1/links/:id/status
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	status, err := h.service.PaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpStatus, code := statusForError(err)
		c.JSON(httpStatus, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// GetRequiredAmount handles GET /v1/links/:id/required-amount
func (h *Handler) GetRequiredAmount(c *gin.Context) {
	required, err := h.service.RequiredAmount(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requiredAmount": amount.Format(required)})
}

// GetContractState handles GET /v1/contract
func (h *Handler) GetContractState(c *gin.Context) {
	settings, err := h.service.ContractState(c.Request.Context())
	if err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":        settings.Enabled,
		"owner":          settings.Owner,
		"commissionRate": settings.CommissionRate,
	})
}

// SetCommissionRate handles PUT /v1/admin/commission-rate
func (h *Handler) SetCommissionRate(c *gin.Context) {
	var req SetCommissionRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "rate is required",
		})
		return
	}

	if err := h.service.SetCommissionRate(c.Request.Context(), req.Rate, auth.CallerAddress(c)); err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commissionRate": req.Rate})
}

// DisableContract handles POST /v1/admin/disable
func (h *Handler) DisableContract(c *gin.Context) {
	if err := h.service.Disable(c.Request.Context(), auth.CallerAddress(c)); err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

// EnableContract handles POST /v1/admin/enable
func (h *Handler) EnableContract(c *gin.Context) {
	if err := h.service.Enable(c.Request.Context(), auth.CallerAddress(c)); err != nil {
		status, code := statusForError(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

// statusForError maps domain errors to HTTP responses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, ErrInvalidStatus):
		return http.StatusConflict, "invalid_status"
	case errors.Is(err, ErrAlreadyEnabled):
		return http.StatusConflict, "already_enabled"
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, ErrContractDisabled):
		return http.StatusServiceUnavailable, "contract_disabled"
	case errors.Is(err, ErrInvalidCommissionRate):
		return http.StatusBadRequest, "invalid_commission_rate"
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, ErrNotInitialized):
		return http.StatusServiceUnavailable, "not_initialized"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
