package webhooks

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/splitpay/internal/idgen"
)

// Handler provides HTTP endpoints for webhook subscriptions.
type Handler struct {
	store Store
}

// NewHandler creates a new webhook handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up webhook subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks", h.Subscribe)
	r.GET("/webhooks", h.List)
	r.DELETE("/webhooks/:id", h.Unsubscribe)
}

// SubscribeRequest contains the parameters for creating a subscription.
type SubscribeRequest struct {
	URL    string      `json:"url" binding:"required"`
	Events []EventType `json:"events" binding:"required"`
}

var validEvents = map[EventType]bool{
	EventCreatedPaymentLink:         true,
	EventIndividualPaymentCompleted: true,
	EventCompletedPayment:           true,
	EventCancelledPayment:           true,
}

// Subscribe handles POST /v1/webhooks
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "url and events are required",
		})
		return
	}

	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "url must be a valid http(s) URL",
		})
		return
	}
	for _, ev := range req.Events {
		if !validEvents[ev] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "unknown event type: " + string(ev),
			})
			return
		}
	}

	sub := &Subscription{
		ID:        idgen.WithPrefix("wh_"),
		URL:       req.URL,
		Secret:    idgen.Hex(32),
		Events:    req.Events,
		Active:    true,
		CreatedAt: time.Now(),
	}

	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create subscription",
		})
		return
	}

	// The secret is returned exactly once, at creation.
	c.JSON(http.StatusCreated, gin.H{
		"subscription": sub,
		"secret":       sub.Secret,
	})
}

// List handles GET /v1/webhooks
func (h *Handler) List(c *gin.Context) {
	subs, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// Unsubscribe handles DELETE /v1/webhooks/:id
func (h *Handler) Unsubscribe(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Subscription not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}
