package repository

import (
	"errors"

	"github.com/Baaaki/imf-gadgets/internal/models"
	"gorm.io/gorm"
)

type GadgetRepository struct {
	db *gorm.DB
}

func NewGadgetRepository(db *gorm.DB) *GadgetRepository {
	return &GadgetRepository{db: db}
}

// CreateGadget returns ErrDuplicate when the codename is already stored
func (r *GadgetRepository) CreateGadget(gadget *models.Gadget) error {
	return translate(r.db.Create(gadget).Error)
}

// GetGadgetByID returns nil, nil when no gadget has that id
func (r *GadgetRepository) GetGadgetByID(id string) (*models.Gadget, error) {
	var gadget models.Gadget
	err := r.db.Where("id = ?", id).First(&gadget).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &gadget, nil
}

// ListGadgets returns every gadget, or only those in status when it is set
func (r *GadgetRepository) ListGadgets(status models.GadgetStatus) ([]models.Gadget, error) {
	gadgets := []models.Gadget{}
	query := r.db.Order("created_at ASC").Order("id ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Find(&gadgets).Error; err != nil {
		return nil, err
	}
	return gadgets, nil
}

// CodenameExists checks the whole population, terminal gadgets included
func (r *GadgetRepository) CodenameExists(codename string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Gadget{}).Where("codename = ?", codename).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateGadget applies fields in a single statement, skipping the row when its
// current status is one of excluded. It reports whether a row was changed.
func (r *GadgetRepository) UpdateGadget(id string, fields map[string]interface{}, excluded ...models.GadgetStatus) (bool, error) {
	query := r.db.Model(&models.Gadget{}).Where("id = ?", id)
	if len(excluded) > 0 {
		query = query.Where("status NOT IN ?", excluded)
	}

	result := query.Updates(fields)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}
