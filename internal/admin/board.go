// Package admin holds the staff-side views: the live order board and the
// generic CRUD views over admin resources.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/events"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/ui"
)

const (
	DefaultPollInterval = 30 * time.Second

	// maxBoardPages bounds one refresh if the server keeps reporting more pages.
	maxBoardPages = 50
)

var (
	ErrUnknownOrder = errors.New("order is not on the board")
	ErrNoNextStatus = errors.New("order has no next status")
	ErrCannotCancel = errors.New("only pending orders can be cancelled")
	ErrBoardStopped = errors.New("board stopped after the session expired")
)

type OrdersAPI interface {
	AdminOrders(ctx context.Context, status models.OrderStatus, page int) (*client.AdminOrderPage, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, version *int) (*models.Order, error)
}

// StreamFunc subscribes to pushed order events. (*client.Client).StreamOrderEvents
// has this shape.
type StreamFunc func(ctx context.Context, fn func(events.OrderEvent)) error

// Board is the admin order list. It refetches on a timer, on Nudge and
// after every mutation; a response that arrives after a newer one has been
// applied is dropped.
type Board struct {
	api      OrdersAPI
	notifier ui.Notifier
	logger   *zap.Logger
	interval time.Duration
	filter   models.OrderStatus

	mu       sync.Mutex
	orders   []models.Order
	issued   uint64
	applied  uint64
	paused   bool
	stopped  bool
	onChange func([]models.Order)

	nudge chan struct{}
}

type BoardOption func(*Board)

func WithInterval(d time.Duration) BoardOption {
	return func(b *Board) {
		if d > 0 {
			b.interval = d
		}
	}
}

func WithStatusFilter(s models.OrderStatus) BoardOption {
	return func(b *Board) { b.filter = s }
}

func WithBoardLogger(l *zap.Logger) BoardOption {
	return func(b *Board) { b.logger = l }
}

// NewBoard builds a board over api. Once a refresh is rejected with
// client.ErrUnauthorized the board stays stopped until Restart is called,
// typically after a new login.
func NewBoard(api OrdersAPI, notifier ui.Notifier, opts ...BoardOption) *Board {
	b := &Board{
		api:      api,
		notifier: notifier,
		logger:   zap.NewNop(),
		interval: DefaultPollInterval,
		nudge:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChange registers fn to receive every applied order list.
func (b *Board) OnChange(fn func([]models.Order)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

func (b *Board) Orders() []models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrBoardStopped
	}
	b.issued++
	seq := b.issued
	b.mu.Unlock()

	orders, err := b.fetchAll(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			b.mu.Lock()
			b.stopped = true
			b.mu.Unlock()
		}
		return err
	}

	b.mu.Lock()
	if seq <= b.applied {
		b.mu.Unlock()
		b.logger.Debug("drop stale order list", zap.Uint64("seq", seq))
		return nil
	}
	b.applied = seq
	b.orders = orders
	fn := b.onChange
	snapshot := make([]models.Order, len(b.orders))
	copy(snapshot, b.orders)
	b.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return nil
}

// fetchAll walks every page of the admin listing so older orders stay on
// the board.
func (b *Board) fetchAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	for page := 1; page <= maxBoardPages; page++ {
		res, err := b.api.AdminOrders(ctx, b.filter, page)
		if err != nil {
			return nil, err
		}
		orders = append(orders, res.Items...)
		if res.Page >= res.TotalPages || len(res.Items) == 0 {
			return orders, nil
		}
	}
	b.logger.Warn("order list truncated", zap.Int("pages", maxBoardPages))
	return orders, nil
}

// Restart clears the stopped state left by an expired session.
func (b *Board) Restart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = false
}

// Advance moves an order to the next status of the chain.
func (b *Board) Advance(ctx context.Context, id int64) error {
	order, err := b.find(ctx, id)
	if err != nil {
		return err
	}
	next, ok := models.NextStatus(order.Status)
	if !ok {
		return ErrNoNextStatus
	}
	return b.change(ctx, order, next)
}

// Cancel is only offered while the order is pending.
func (b *Board) Cancel(ctx context.Context, id int64) error {
	order, err := b.find(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanCancel(order.Status) {
		return ErrCannotCancel
	}
	return b.change(ctx, order, models.StatusCancelled)
}

func (b *Board) change(ctx context.Context, order models.Order, to models.OrderStatus) error {
	version := order.Version
	_, err := b.api.UpdateOrderStatus(ctx, order.ID, to, &version)
	if err != nil {
		b.logger.Warn("update order status",
			zap.Int64("order_id", order.ID),
			zap.String("to", string(to)),
			zap.Error(err))
		b.notifier.Error(client.UserMessage(err))

		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			if rerr := b.Refresh(ctx); rerr != nil {
				b.logger.Warn("refresh after conflict", zap.Error(rerr))
			}
		}
		return err
	}

	b.notifier.Success(fmt.Sprintf("Commande %s : %s", order.OrderNumber, to.Label()))
	return b.Refresh(ctx)
}

// find looks the order up on the board first, then asks the server for it.
func (b *Board) find(ctx context.Context, id int64) (models.Order, error) {
	b.mu.Lock()
	for _, o := range b.orders {
		if o.ID == id {
			b.mu.Unlock()
			return o, nil
		}
	}
	b.mu.Unlock()

	order, err := b.api.GetOrder(ctx, id)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return models.Order{}, ErrUnknownOrder
		}
		return models.Order{}, err
	}
	return *order, nil
}

// Pause stops timed refreshes, as when the dashboard is hidden.
func (b *Board) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
}

// Resume restarts timed refreshes and refreshes right away.
func (b *Board) Resume() {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	b.Nudge()
}

func (b *Board) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Nudge asks Run for a refresh as soon as possible. Nudges coalesce.
func (b *Board) Nudge() {
	select {
	case b.nudge <- struct{}{}:
	default:
	}
}

// Run refreshes until ctx is done or the session expires, in which case it
// returns client.ErrUnauthorized.
func (b *Board) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	if err := b.poll(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if b.Paused() {
				continue
			}
		case <-b.nudge:
			if b.Paused() {
				continue
			}
		}

		if err := b.poll(ctx); err != nil {
			return err
		}
	}
}

func (b *Board) poll(ctx context.Context) error {
	err := b.Refresh(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, ErrBoardStopped):
		return client.ErrUnauthorized
	case ctx.Err() != nil:
		return nil
	default:
		b.logger.Warn("poll orders", zap.Error(err))
		return nil
	}
}

// Watch nudges the board on every pushed event until ctx is done.
func (b *Board) Watch(ctx context.Context, stream StreamFunc) error {
	return stream(ctx, func(ev events.OrderEvent) {
		b.logger.Debug("order event",
			zap.String("type", ev.Type),
			zap.Int64("order_id", ev.OrderID))
		b.Nudge()
	})
}
