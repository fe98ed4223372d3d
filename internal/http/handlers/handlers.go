package handlers

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/conversation"
	"github.com/muni-info/backend/internal/models"
	"github.com/muni-info/backend/internal/notify"
	"github.com/muni-info/backend/internal/routing"
	"github.com/muni-info/backend/internal/store"
	"github.com/muni-info/backend/internal/triage"
)

type Handler struct {
	Complaints store.ComplaintStore
	Engine     *conversation.Engine
	Classifier triage.Classifier
	Registry   *routing.Registry
	Router     *routing.Engine
	Notifier   notify.Notifier
	Validator  *validator.Validate
	Logger     zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	if p, ok := h.Complaints.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// WebhookChat accepts a Twilio-style inbound message (WhatsApp/SMS)
// and answers with TwiML so the gateway relays the reply.
func (h *Handler) WebhookChat(c *gin.Context) {
	from := strings.TrimSpace(c.PostForm("From"))
	if from == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "From is required", nil)
		return
	}

	in := conversation.Intake{
		Address:   from,
		Text:      c.PostForm("Body"),
		SessionID: c.PostForm("MessageSid"),
		Channel:   conversation.ChannelChat,
	}
	lat, latErr := strconv.ParseFloat(c.PostForm("Latitude"), 64)
	lon, lonErr := strconv.ParseFloat(c.PostForm("Longitude"), 64)
	if latErr == nil && lonErr == nil {
		in.Latitude = lat
		in.Longitude = lon
		in.HasCoords = true
	}

	reply := h.Engine.Handle(c.Request.Context(), in)

	body, err := xml.Marshal(twiml{Message: reply.Text})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "ENCODING_ERROR", "Failed to encode reply", err.Error())
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), body...))
}

// WebhookUSSD accepts an Africa's Talking-style callback. The gateway
// accumulates inputs as "1*4*2"; only the last segment is new.
func (h *Handler) WebhookUSSD(c *gin.Context) {
	phone := strings.TrimSpace(c.PostForm("phoneNumber"))
	if phone == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "phoneNumber is required", nil)
		return
	}

	text := c.PostForm("text")
	if i := strings.LastIndex(text, "*"); i >= 0 {
		text = text[i+1:]
	}

	reply := h.Engine.Handle(c.Request.Context(), conversation.Intake{
		Address:   phone,
		Text:      text,
		SessionID: c.PostForm("sessionId"),
		Channel:   conversation.ChannelUSSD,
	})

	prefix := "END "
	if reply.Continue {
		prefix = "CON "
	}
	c.String(http.StatusOK, prefix+reply.Text)
}

func (h *Handler) ComplaintGet(c *gin.Context) {
	reference := c.Param("reference")
	complaint, err := h.Complaints.GetByReference(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Complaint not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get complaint", err.Error())
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (h *Handler) ComplaintsList(c *gin.Context) {
	sender := strings.TrimSpace(c.Query("sender"))
	if sender == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "sender is required", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	items, err := h.Complaints.ListBySender(c.Request.Context(), sender, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list complaints", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit})
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

// @Summary Update complaint status
// @Description Moves a complaint through its lifecycle and notifies the citizen
// @Tags complaints
// @Accept json
// @Produce json
// @Param reference path string true "Reference id (MI-YYYY-NNNNNN)"
// @Param body body StatusUpdateRequest true "New status"
// @Success 200 {object} models.Complaint
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/complaints/{reference}/status [post]
func (h *Handler) ComplaintStatusUpdate(c *gin.Context) {
	reference := c.Param("reference")

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	status, ok := models.ParseStatus(req.Status)
	if !ok {
		writeError(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown status", req.Status)
		return
	}

	ctx := c.Request.Context()
	prior, err := h.Complaints.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Complaint not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load complaint", err.Error())
		return
	}

	updated, err := h.Complaints.UpdateStatus(ctx, reference, status, req.Notes)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Complaint not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update status", err.Error())
		return
	}

	// Capacity is held from routing until the complaint leaves the
	// active lifecycle; release exactly once.
	if isTerminal(status) && !isTerminal(prior.Status) {
		h.Router.Release(updated)
	}

	text := "Update on complaint " + updated.ReferenceID + ": status " + string(updated.Status) + "."
	if req.Notes != "" {
		text += " " + req.Notes
	}
	if err := h.Notifier.Send(ctx, updated.Sender, text); err != nil {
		h.Logger.Warn().Err(err).Str("reference", updated.ReferenceID).Msg("status notification failed")
	}

	c.JSON(http.StatusOK, updated)
}

func isTerminal(s models.Status) bool {
	return s == models.StatusResolved || s == models.StatusClosed
}

func (h *Handler) DepartmentsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Registry.DepartmentStatusList()})
}

// @Summary Trending complaint categories
// @Tags analytics
// @Produce json
// @Param days query int false "Window in days (default 7)"
// @Success 200 {object} map[string]any
// @Router /api/v1/analytics/trending [get]
func (h *Handler) Trending(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	counts, err := h.Complaints.CountByCategorySince(c.Request.Context(), since)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to count complaints", err.Error())
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "since": since, "counts": counts, "total": total})
}

type ClassifyRequest struct {
	Text     string `json:"text" validate:"required"`
	Location string `json:"location"`
}

// @Summary Classify complaint text
// @Description Runs the keyword classifier without lodging anything
// @Tags analytics
// @Accept json
// @Produce json
// @Param body body ClassifyRequest true "Complaint text"
// @Success 200 {object} models.Classification
// @Failure 400 {object} map[string]any
// @Router /api/v1/classify [post]
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Classifier.Classify(req.Text, req.Location))
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
