package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GadgetStatus string

const (
	StatusAvailable      GadgetStatus = "Available"
	StatusDeployed       GadgetStatus = "Deployed"
	StatusDestroyed      GadgetStatus = "Destroyed"
	StatusDecommissioned GadgetStatus = "Decommissioned"
)

// ParseGadgetStatus matches s exactly against the known statuses
func ParseGadgetStatus(s string) (GadgetStatus, bool) {
	switch status := GadgetStatus(s); status {
	case StatusAvailable, StatusDeployed, StatusDestroyed, StatusDecommissioned:
		return status, true
	}
	return "", false
}

type Gadget struct {
	ID       string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name     string       `gorm:"type:varchar(255);not null" json:"name"`
	Codename string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"codename"`
	Status   GadgetStatus `gorm:"type:varchar(20);not null;default:'Available';index" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Stamped on the way into a terminal status, never cleared
	DestroyedAt      *time.Time `json:"destroyedAt"`
	DecommissionedAt *time.Time `json:"decommissionedAt"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (g *Gadget) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
