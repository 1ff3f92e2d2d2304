package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/broker"
	"github.com/Baaaki/imf-gadgets/internal/codename"
	"github.com/Baaaki/imf-gadgets/internal/models"
	"github.com/Baaaki/imf-gadgets/internal/repository"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxGadgetNameLength = 255

// UpdateGadgetInput holds a partial update; nil fields stay unchanged
type UpdateGadgetInput struct {
	Name   *string
	Status *string
}

type SelfDestructResult struct {
	Gadget           *models.Gadget
	ConfirmationCode int
}

// GadgetService owns the gadget lifecycle:
//
//	Available ──update──> Deployed | Destroyed
//	Available|Deployed ──self-destruct──> Destroyed
//	any ──decommission──> Decommissioned
//
// update never moves a gadget into or out of Decommissioned.
type GadgetService struct {
	gadgetRepo *repository.GadgetRepository
	codenames  *codename.Generator
	events     broker.EventBroker

	now              func() time.Time
	confirmationCode func() int
}

func NewGadgetService(
	gadgetRepo *repository.GadgetRepository,
	codenames *codename.Generator,
	events broker.EventBroker,
) *GadgetService {
	return &GadgetService{
		gadgetRepo:       gadgetRepo,
		codenames:        codenames,
		events:           events,
		now:              time.Now,
		confirmationCode: randomConfirmationCode,
	}
}

// randomConfirmationCode returns a six digit number in [100000, 999999]
func randomConfirmationCode() int {
	return 100000 + rand.IntN(900000)
}

// ListGadgets returns all gadgets, or those in status when it is non-empty
func (s *GadgetService) ListGadgets(status string) ([]models.Gadget, error) {
	var filter models.GadgetStatus
	if status != "" {
		parsed, ok := models.ParseGadgetStatus(status)
		if !ok {
			return nil, invalid("status", "Invalid status filter")
		}
		filter = parsed
	}

	gadgets, err := s.gadgetRepo.ListGadgets(filter)
	if err != nil {
		logger.Log.Error("Failed to list gadgets",
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, err
	}

	return gadgets, nil
}

func (s *GadgetService) CreateGadget(name string) (*models.Gadget, error) {
	name = strings.TrimSpace(name)
	if err := validateGadgetName(name); err != nil {
		return nil, err
	}

	code, err := s.codenames.Generate(s.gadgetRepo.CodenameExists)
	if err != nil {
		if errors.Is(err, codename.ErrPoolExhausted) {
			logger.Log.Error("No free codename left",
				zap.Int("pool_size", len(s.codenames.Pool())),
				zap.Error(err),
			)
		}
		return nil, err
	}

	gadget := &models.Gadget{
		Name:     name,
		Codename: code,
		Status:   models.StatusAvailable,
	}

	// The unique index has the final say when two creations draw the same name
	if err := s.gadgetRepo.CreateGadget(gadget); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Log.Warn("Codename claimed concurrently",
				zap.String("codename", code),
			)
			return nil, ErrCodenameTaken
		}
		logger.Log.Error("Failed to create gadget",
			zap.String("name", name),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("Gadget created",
		zap.String("gadget_id", gadget.ID),
		zap.String("codename", gadget.Codename),
	)
	s.publish(broker.EventGadgetCreated, gadget)

	return gadget, nil
}

func (s *GadgetService) UpdateGadget(id string, input UpdateGadgetInput) (*models.Gadget, error) {
	fields := map[string]interface{}{}
	var excluded []models.GadgetStatus

	if input.Status != nil {
		// Checked before anything else, whatever state the gadget is in
		if *input.Status == string(models.StatusDecommissioned) {
			return nil, ErrInvalidTransition
		}
		status, ok := models.ParseGadgetStatus(*input.Status)
		if !ok {
			return nil, invalid("status", "Invalid status")
		}

		fields["status"] = status
		if status == models.StatusDestroyed {
			fields["destroyed_at"] = gorm.Expr("COALESCE(destroyed_at, ?)", s.now())
		}
		excluded = append(excluded, models.StatusDecommissioned)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateGadgetName(name); err != nil {
			return nil, err
		}
		fields["name"] = name
	}

	if len(fields) == 0 {
		gadget, err := s.getGadget(id)
		if err != nil {
			return nil, err
		}
		return gadget, nil
	}

	updated, err := s.gadgetRepo.UpdateGadget(id, fields, excluded...)
	if err != nil {
		logger.Log.Error("Failed to update gadget",
			zap.String("gadget_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	gadget, err := s.getGadget(id)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The row exists, so the status guard rejected it
		logger.Log.Warn("Rejected status change on decommissioned gadget",
			zap.String("gadget_id", id),
		)
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, ErrAlreadyDecommissioned)
	}

	logger.Log.Info("Gadget updated",
		zap.String("gadget_id", gadget.ID),
		zap.String("status", string(gadget.Status)),
	)
	s.publish(broker.EventGadgetUpdated, gadget)

	return gadget, nil
}

// DecommissionGadget applies unconditionally: decommissioning twice succeeds
// and moves decommissionedAt to the latest call.
func (s *GadgetService) DecommissionGadget(id string) (*models.Gadget, error) {
	updated, err := s.gadgetRepo.UpdateGadget(id, map[string]interface{}{
		"status":            models.StatusDecommissioned,
		"decommissioned_at": s.now(),
	})
	if err != nil {
		logger.Log.Error("Failed to decommission gadget",
			zap.String("gadget_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	if !updated {
		return nil, ErrGadgetNotFound
	}

	gadget, err := s.getGadget(id)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Gadget decommissioned",
		zap.String("gadget_id", gadget.ID),
		zap.String("codename", gadget.Codename),
	)
	s.publish(broker.EventGadgetDecommissioned, gadget)

	return gadget, nil
}

// SelfDestruct destroys a gadget that is neither destroyed nor decommissioned.
// The confirmation code is only returned, never stored.
func (s *GadgetService) SelfDestruct(id string) (*SelfDestructResult, error) {
	gadget, err := s.getGadget(id)
	if err != nil {
		return nil, err
	}
	if err := terminalError(gadget.Status); err != nil {
		return nil, err
	}

	updated, err := s.gadgetRepo.UpdateGadget(id, map[string]interface{}{
		"status":       models.StatusDestroyed,
		"destroyed_at": gorm.Expr("COALESCE(destroyed_at, ?)", s.now()),
	}, models.StatusDestroyed, models.StatusDecommissioned)
	if err != nil {
		logger.Log.Error("Failed to self-destruct gadget",
			zap.String("gadget_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	gadget, err = s.getGadget(id)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race with another terminal transition
		if err := terminalError(gadget.Status); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyDestroyed
	}

	result := &SelfDestructResult{
		Gadget:           gadget,
		ConfirmationCode: s.confirmationCode(),
	}

	logger.Log.Info("Gadget self-destructed",
		zap.String("gadget_id", gadget.ID),
		zap.String("codename", gadget.Codename),
	)
	s.publish(broker.EventGadgetDestroyed, gadget)

	return result, nil
}

func (s *GadgetService) getGadget(id string) (*models.Gadget, error) {
	gadget, err := s.gadgetRepo.GetGadgetByID(id)
	if err != nil {
		logger.Log.Error("Failed to load gadget",
			zap.String("gadget_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	if gadget == nil {
		return nil, ErrGadgetNotFound
	}
	return gadget, nil
}

// publish is best-effort; a broker outage never fails the mutation
func (s *GadgetService) publish(eventType broker.EventType, gadget *models.Gadget) {
	if s.events == nil {
		return
	}

	event := broker.GadgetEvent{
		Type:   eventType,
		Gadget: *gadget,
		At:     s.now().UTC(),
	}
	if err := s.events.Publish(event); err != nil {
		logger.Log.Warn("Failed to publish gadget event",
			zap.String("type", string(eventType)),
			zap.String("gadget_id", gadget.ID),
			zap.Error(err),
		)
	}
}

func terminalError(status models.GadgetStatus) error {
	switch status {
	case models.StatusDecommissioned:
		return ErrAlreadyDecommissioned
	case models.StatusDestroyed:
		return ErrAlreadyDestroyed
	}
	return nil
}

func validateGadgetName(name string) error {
	if name == "" {
		return invalid("name", "Name is required")
	}
	if len([]rune(name)) > maxGadgetNameLength {
		return invalid("name", "Name must be at most 255 characters")
	}
	return nil
}
