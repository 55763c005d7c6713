package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/splitpay/internal/validation"
)

// Handler provides HTTP endpoints for account registration.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new auth handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes sets up registration routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts/register", h.Register)
}

// RegisterRequest contains the parameters for registering an account.
type RegisterRequest struct {
	Address string `json:"address" binding:"required"`
}

// Register handles POST /v1/accounts/register
//
// Issues an API key bound to the given address. The raw key is returned
// exactly once; only its hash is stored.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "address is required",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("address", req.Address),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	raw, err := h.manager.CreateKey(c.Request.Context(), validation.SanitizeAddress(req.Address))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create API key",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"address": validation.SanitizeAddress(req.Address),
		"apiKey":  raw,
	})
}
