package handler

import (
	"errors"
	"math/rand/v2"
	"net/http"

	"github.com/Baaaki/imf-gadgets/internal/codename"
	"github.com/Baaaki/imf-gadgets/internal/middleware"
	"github.com/Baaaki/imf-gadgets/internal/models"
	"github.com/Baaaki/imf-gadgets/internal/service"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GadgetHandler struct {
	gadgetService *service.GadgetService
	probability   func() int
}

func NewGadgetHandler(gadgetService *service.GadgetService) *GadgetHandler {
	return &GadgetHandler{
		gadgetService: gadgetService,
		probability:   missionSuccessProbability,
	}
}

// WithProbability replaces the mission success estimate, for tests
func (h *GadgetHandler) WithProbability(fn func() int) *GadgetHandler {
	h.probability = fn
	return h
}

// missionSuccessProbability is a fresh percentage in [1, 100] per listing.
// It is not stored.
func missionSuccessProbability() int {
	return 1 + rand.IntN(100)
}

type CreateGadgetRequest struct {
	Name string `json:"name"`
}

type UpdateGadgetRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

// GadgetListItem is a gadget as listed, with its mission success estimate
type GadgetListItem struct {
	models.Gadget
	MissionSuccessProbability int `json:"mission_success_probability"`
}

type SelfDestructResponse struct {
	Message          string         `json:"message"`
	ConfirmationCode int            `json:"confirmationCode"`
	Gadget           *models.Gadget `json:"gadget"`
}

func (h *GadgetHandler) ListGadgets(c *gin.Context) {
	gadgets, err := h.gadgetService.ListGadgets(c.Query("status"))
	if err != nil {
		h.writeGadgetError(c, err)
		return
	}

	items := make([]GadgetListItem, 0, len(gadgets))
	for _, gadget := range gadgets {
		items = append(items, GadgetListItem{
			Gadget:                    gadget,
			MissionSuccessProbability: h.probability(),
		})
	}

	c.JSON(http.StatusOK, items)
}

func (h *GadgetHandler) CreateGadget(c *gin.Context) {
	var req CreateGadgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Create gadget request parsing failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	gadget, err := h.gadgetService.CreateGadget(req.Name)
	if err != nil {
		h.writeGadgetError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gadget)
}

func (h *GadgetHandler) UpdateGadget(c *gin.Context) {
	var req UpdateGadgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Update gadget request parsing failed",
			zap.String("gadget_id", c.Param("id")),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	gadget, err := h.gadgetService.UpdateGadget(c.Param("id"), service.UpdateGadgetInput{
		Name:   req.Name,
		Status: req.Status,
	})
	if err != nil {
		h.writeGadgetError(c, err)
		return
	}

	c.JSON(http.StatusOK, gadget)
}

func (h *GadgetHandler) DecommissionGadget(c *gin.Context) {
	gadget, err := h.gadgetService.DecommissionGadget(c.Param("id"))
	if err != nil {
		h.writeGadgetError(c, err)
		return
	}

	c.JSON(http.StatusOK, gadget)
}

func (h *GadgetHandler) SelfDestruct(c *gin.Context) {
	result, err := h.gadgetService.SelfDestruct(c.Param("id"))
	if err != nil {
		h.writeGadgetError(c, err)
		return
	}

	logger.Log.Info("Self-destruct triggered",
		zap.String("gadget_id", result.Gadget.ID),
		zap.String("user_id", c.GetString(middleware.ContextUserID)),
	)

	c.JSON(http.StatusOK, SelfDestructResponse{
		Message:          "Self-destruct initiated",
		ConfirmationCode: result.ConfirmationCode,
		Gadget:           result.Gadget,
	})
}

// writeGadgetError maps service errors to a status and a short message.
// Anything unrecognised is a 500 and its details stay in the log.
func (h *GadgetHandler) writeGadgetError(c *gin.Context, err error) {
	var validation *service.ValidationError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	case errors.Is(err, service.ErrGadgetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Gadget not found"})
	case errors.Is(err, service.ErrAlreadyDecommissioned):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Decommissioned gadget"})
	case errors.Is(err, service.ErrAlreadyDestroyed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Already destroyed"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Use DELETE to decommission"})
	case errors.Is(err, service.ErrCodenameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Codename collision, please retry"})
	case errors.Is(err, codename.ErrPoolExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No codename available"})
	default:
		logger.Log.Error("Gadget request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
