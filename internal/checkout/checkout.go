// Package checkout turns the cart into exactly one order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/cart"
	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/ui"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrMissingDeliveryInfo = errors.New("delivery building and phone are required")
	ErrSubmitInProgress    = errors.New("an order submission is already in progress")
)

// API is the part of the backend checkout talks to. *client.Client
// implements it.
type API interface {
	Authenticated() bool
	Me(ctx context.Context) (*models.Customer, error)
	CreateOrder(ctx context.Context, order models.CreateOrderRequest, idempotencyKey string) (*models.Order, error)
}

// Draft is what the customer picks on the checkout screen.
type Draft struct {
	ServiceType      models.ServiceType
	ArrivalTime      string
	PaymentMethod    models.PaymentMethod
	DeliveryBuilding string
	DeliveryPhone    string
}

// HistoryEntry is the local record of a placed order.
type HistoryEntry struct {
	OrderID       int64
	OrderNumber   string
	Total         decimal.Decimal
	LoyaltyPoints int
	Status        models.OrderStatus
	ServiceType   models.ServiceType
	Items         int
	PlacedAt      time.Time
}

type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

func (h *History) Add(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

type Checkout struct {
	api      API
	cart     *cart.Cart
	history  *History
	notifier ui.Notifier
	nav      ui.Navigator
	logger   *zap.Logger
	newKey   func() string

	mu          sync.Mutex
	submitting  bool
	key         string
	keyRevision uint64
}

type Option func(*Checkout)

func WithLogger(l *zap.Logger) Option {
	return func(c *Checkout) { c.logger = l }
}

func WithKeyGenerator(fn func() string) Option {
	return func(c *Checkout) { c.newKey = fn }
}

func New(api API, c *cart.Cart, history *History, notifier ui.Notifier, nav ui.Navigator, opts ...Option) *Checkout {
	co := &Checkout{
		api:      api,
		cart:     c,
		history:  history,
		notifier: notifier,
		nav:      nav,
		logger:   zap.NewNop(),
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

func (c *Checkout) Totals(service models.ServiceType) models.Totals {
	return cart.ComputeTotals(c.cart.Lines(), service)
}

// Submit places the cart as one order. Local preconditions are checked
// before any request. A retry after a failure reuses the idempotency key
// as long as the cart has not changed.
func (c *Checkout) Submit(ctx context.Context, draft Draft) (*models.Order, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	lines, revision := c.cart.Snapshot()
	if len(lines) == 0 {
		c.notifier.Alert("Votre panier est vide.")
		return nil, ErrEmptyCart
	}
	if !c.api.Authenticated() {
		c.notifier.Alert("Veuillez vous connecter pour passer commande.")
		c.nav.Navigate(ui.RouteLogin)
		return nil, ErrNotAuthenticated
	}
	if draft.ServiceType == models.ServiceDelivery &&
		(strings.TrimSpace(draft.DeliveryBuilding) == "" || strings.TrimSpace(draft.DeliveryPhone) == "") {
		c.notifier.Alert("Veuillez renseigner le bâtiment et le téléphone de livraison.")
		return nil, ErrMissingDeliveryInfo
	}

	customer, err := c.api.Me(ctx)
	if err != nil {
		return nil, c.fail(err)
	}
	if customer == nil || customer.ID == 0 {
		c.notifier.Alert("Veuillez vous connecter pour passer commande.")
		c.nav.Navigate(ui.RouteLogin)
		return nil, ErrNotAuthenticated
	}

	totals := cart.ComputeTotals(lines, draft.ServiceType)
	req := models.CreateOrderRequest{
		CustomerID:    customer.ID,
		TotalAmount:   totals.Total,
		ServiceType:   draft.ServiceType,
		ArrivalTime:   draft.ArrivalTime,
		PaymentMethod: draft.PaymentMethod,
	}
	if draft.ServiceType == models.ServiceDelivery {
		req.DeliveryBuilding = strings.TrimSpace(draft.DeliveryBuilding)
		req.DeliveryPhone = strings.TrimSpace(draft.DeliveryPhone)
	}
	for _, l := range lines {
		req.Items = append(req.Items, models.OrderLineRequest{
			ArticleID: l.ArticleID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	order, err := c.api.CreateOrder(ctx, req, c.idempotencyKey(revision))
	if err != nil {
		return nil, c.fail(err)
	}

	c.history.Add(HistoryEntry{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Total:         order.TotalAmount,
		LoyaltyPoints: order.LoyaltyPoints,
		Status:        order.Status,
		ServiceType:   order.ServiceType,
		Items:         len(lines),
		PlacedAt:      order.CreatedAt,
	})
	c.cart.Clear()

	c.mu.Lock()
	c.key = ""
	c.mu.Unlock()

	c.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	c.notifier.Success(fmt.Sprintf("Commande %s confirmée ! Total %s FCFA, +%d points fidélité.",
		order.OrderNumber, order.TotalAmount.StringFixed(0), order.LoyaltyPoints))
	c.nav.Navigate(ui.RouteDashboard)

	return order, nil
}

func (c *Checkout) idempotencyKey(revision uint64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == "" || c.keyRevision != revision {
		c.key = c.newKey()
		c.keyRevision = revision
	}
	return c.key
}

// fail reports err to the user. Navigation to the login screen on 401 is
// left to the client's unauthorized hook.
func (c *Checkout) fail(err error) error {
	c.logger.Warn("order submission failed", zap.Error(err))
	if errors.Is(err, client.ErrUnauthorized) {
		c.notifier.Alert(client.UserMessage(err))
		return err
	}
	c.notifier.Error(client.UserMessage(err))
	for _, msg := range client.FieldMessages(err) {
		c.notifier.Error(msg)
	}
	return err
}
