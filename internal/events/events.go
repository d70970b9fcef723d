package events

import (
	"context"
	"errors"
	"time"

	"github.com/safar/monmiam/internal/models"
)

const (
	TypeOrderCreated       = "commande.creee"
	TypeOrderStatusChanged = "commande.statut"
)

type OrderEvent struct {
	Type        string             `json:"type"`
	OrderID     int64              `json:"commande_id"`
	OrderNumber string             `json:"numero_commande"`
	CustomerID  int64              `json:"client_id"`
	OldStatus   models.OrderStatus `json:"ancien_statut,omitempty"`
	NewStatus   models.OrderStatus `json:"nouveau_statut"`
	ChangedBy   int64              `json:"modifie_par,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

func OrderCreated(o *models.Order) OrderEvent {
	return OrderEvent{
		Type:        TypeOrderCreated,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		NewStatus:   o.Status,
		Timestamp:   time.Now().UTC(),
	}
}

func StatusChanged(o *models.Order, from models.OrderStatus, by int64) OrderEvent {
	return OrderEvent{
		Type:        TypeOrderStatusChanged,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		OldStatus:   from,
		NewStatus:   o.Status,
		ChangedBy:   by,
		Timestamp:   time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
