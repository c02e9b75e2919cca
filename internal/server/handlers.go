package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"protein-advisor/internal/catalog"
	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/dialogue"
	"protein-advisor/internal/models"
)

// Handler serves the session and catalog endpoints.
type Handler struct {
	sessions *dialogue.Manager
	engine   *dialogue.Engine
	store    catalog.Store
	logger   logger.Logger
}

func NewHandler(sessions *dialogue.Manager, engine *dialogue.Engine, store catalog.Store, log logger.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		engine:   engine,
		store:    store,
		logger:   log.With(map[string]interface{}{"component": "http"}),
	}
}

type TurnRequest struct {
	Text string `json:"text"`
}

type TurnResponse struct {
	Accepted        bool                    `json:"accepted"`
	Turn            models.Turn             `json:"turn"`
	Selection       *models.SelectionResult `json:"selection,omitempty"`
	ComparisonTable []models.ComparisonRow  `json:"comparisonTable,omitempty"`
}

func newTurnResponse(res dialogue.TurnResult) TurnResponse {
	return TurnResponse{
		Accepted:        true,
		Turn:            res.Reply,
		Selection:       res.Selection,
		ComparisonTable: res.Selection.ComparisonTable(),
	}
}

// ==========================
// Sessions
// ==========================

func (h *Handler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, s.View())
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	views := make([]dialogue.View, len(sessions))
	for i, s := range sessions {
		views[i] = s.View()
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

func (h *Handler) EndSession(c *gin.Context) {
	if err := h.sessions.End(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdatePersona(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var persona models.Persona
	if err := c.ShouldBindJSON(&persona); err != nil {
		respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	cat, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.UpdatePersona(persona, cat, now()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

func (h *Handler) ConfirmPersona(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	cat, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.ConfirmPersona(cat, now()); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("persona confirmed", map[string]interface{}{"sessionId": s.ID})
	c.JSON(http.StatusOK, s.View())
}

// SubmitTurn runs one chat turn. With ?stream=true the composed fragments are
// sent as "fragment" SSE events followed by a final "turn" event.
func (h *Handler) SubmitTurn(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	if c.Query("stream") == "true" {
		h.streamTurn(c, s, req.Text)
		return
	}

	res, accepted, err := h.engine.SubmitTurn(c.Request.Context(), s, req.Text, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if !accepted {
		respondError(c, apperrors.NewTurnInFlightError(s.ID))
		return
	}
	c.JSON(http.StatusOK, newTurnResponse(res))
}

func (h *Handler) streamTurn(c *gin.Context, s *dialogue.Session, text string) {
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
	}
	sink := func(fragment string) {
		begin()
		c.SSEvent("fragment", fragment)
		c.Writer.Flush()
	}

	res, accepted, err := h.engine.SubmitTurn(c.Request.Context(), s, text, sink)
	if err != nil {
		respondError(c, err)
		return
	}
	if !accepted {
		respondError(c, apperrors.NewTurnInFlightError(s.ID))
		return
	}
	begin()
	c.SSEvent("turn", newTurnResponse(res))
	c.Writer.Flush()
}

// ==========================
// Catalog
// ==========================

func (h *Handler) ListBrands(c *gin.Context) {
	cat, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": cat.Brands()})
}

func (h *Handler) ListBrandProducts(c *gin.Context) {
	cat, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	brand := strings.TrimSpace(c.Param("brand"))
	products := cat.ProductsByBrand(brand)
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"brand": brand, "products": products})
}

// ==========================
// Health
// ==========================

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func Ready(checks []ReadinessCheck, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		failed := map[string]string{}
		for _, check := range checks {
			if err := check.Check(c.Request.Context()); err != nil {
				failed[check.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			log.Warn("readiness check failed", map[string]interface{}{"failed": failed})
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
