package broker

import (
	"context"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/models"
)

type EventType string

const (
	EventGadgetCreated        EventType = "gadget.created"
	EventGadgetUpdated        EventType = "gadget.updated"
	EventGadgetDecommissioned EventType = "gadget.decommissioned"
	EventGadgetDestroyed      EventType = "gadget.destroyed"
)

// GadgetEvent describes one successful lifecycle mutation
type GadgetEvent struct {
	Type   EventType     `json:"type"`
	Gadget models.Gadget `json:"gadget"`
	At     time.Time     `json:"at"`
}

// EventBroker fans lifecycle events out to feed subscribers.
// Delivery is best-effort: slow or absent subscribers may miss events.
type EventBroker interface {
	Publish(event GadgetEvent) error

	// Subscribe delivers events until ctx is cancelled, then closes the channel
	Subscribe(ctx context.Context) (<-chan GadgetEvent, error)

	Close() error
}

const subscriberBuffer = 64
