package testutil

import (
	"testing"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/models"
	"github.com/Baaaki/imf-gadgets/internal/utils"
	"gorm.io/gorm"
)

// CreateTestUser stores a user with a real bcrypt hash of password
func CreateTestUser(t *testing.T, db *gorm.DB, username, password string) *models.User {
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashedPassword,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestGadget stores a gadget directly, bypassing the lifecycle rules.
// Terminal statuses get their timestamp so fixtures look like real rows.
func CreateTestGadget(t *testing.T, db *gorm.DB, name, codename string, status models.GadgetStatus) *models.Gadget {
	gadget := &models.Gadget{
		Name:     name,
		Codename: codename,
		Status:   status,
	}

	now := time.Now()
	switch status {
	case models.StatusDestroyed:
		gadget.DestroyedAt = &now
	case models.StatusDecommissioned:
		gadget.DecommissionedAt = &now
	}

	if err := db.Create(gadget).Error; err != nil {
		t.Fatalf("Failed to create test gadget: %v", err)
	}
	return gadget
}

// ReloadGadget reads the stored row back
func ReloadGadget(t *testing.T, db *gorm.DB, id string) *models.Gadget {
	var gadget models.Gadget
	if err := db.Where("id = ?", id).First(&gadget).Error; err != nil {
		t.Fatalf("Failed to reload gadget %s: %v", id, err)
	}
	return &gadget
}
