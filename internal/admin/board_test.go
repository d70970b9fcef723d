package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/events"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/ui"
)

type patch struct {
	id      int64
	status  models.OrderStatus
	version *int
}

// fakeOrders serves orders newest first. With pageSize set it splits the
// listing the way the server does.
type fakeOrders struct {
	mu       sync.Mutex
	orders   []models.Order
	lists    int
	pages    []int
	gets     []int64
	pageSize int
	patches  []patch
	listErr  error
	gates    []chan struct{}
}

func (f *fakeOrders) AdminOrders(ctx context.Context, status models.OrderStatus, page int) (*client.AdminOrderPage, error) {
	f.mu.Lock()
	f.lists++
	f.pages = append(f.pages, page)
	var gate chan struct{}
	if len(f.gates) > 0 {
		gate, f.gates = f.gates[0], f.gates[1:]
	}
	snapshot := make([]models.Order, len(f.orders))
	copy(snapshot, f.orders)
	err := f.listErr
	size := f.pageSize
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return &client.AdminOrderPage{Items: snapshot}, nil
	}

	if page < 1 {
		page = 1
	}
	start := min((page-1)*size, len(snapshot))
	end := min(start+size, len(snapshot))
	return &client.AdminOrderPage{
		Items:      snapshot[start:end],
		Total:      int64(len(snapshot)),
		Page:       page,
		PageSize:   size,
		TotalPages: (len(snapshot) + size - 1) / size,
	}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, id)
	for _, o := range f.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "commande introuvable"}
}

func (f *fakeOrders) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, version *int) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch{id: id, status: status, version: version})
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			f.orders[i].Version++
			o := f.orders[i]
			return &o, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "commande introuvable"}
}

func (f *fakeOrders) setOrders(orders ...models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = orders
}

func (f *fakeOrders) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

type notes struct {
	mu      sync.Mutex
	errors  []string
	success []string
	alerts  []string
}

func (n *notes) Alert(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, msg)
}

func (n *notes) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *notes) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func order(id int64, status models.OrderStatus) models.Order {
	return models.Order{ID: id, OrderNumber: fmt.Sprintf("CMD-%d", id), Status: status, Version: 1}
}

func TestCancelPendingOrder(t *testing.T) {
	api := &fakeOrders{}
	api.setOrders(order(1, models.StatusPending))
	board := NewBoard(api, &notes{})
	ctx := context.Background()

	require.NoError(t, board.Refresh(ctx))
	require.NoError(t, board.Cancel(ctx, 1))

	require.Len(t, api.patches, 1)
	assert.Equal(t, models.StatusCancelled, api.patches[0].status)
	require.NotNil(t, api.patches[0].version)
	assert.Equal(t, 1, *api.patches[0].version)

	orders := board.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusCancelled, orders[0].Status, "the list is refetched after the change")

	_, ok := models.NextStatus(orders[0].Status)
	assert.False(t, ok)
	assert.ErrorIs(t, board.Advance(ctx, 1), ErrNoNextStatus)
	assert.ErrorIs(t, board.Cancel(ctx, 1), ErrCannotCancel)
	assert.Len(t, api.patches, 1)
}

func TestAdvanceWalksTheChain(t *testing.T) {
	api := &fakeOrders{}
	api.setOrders(order(1, models.StatusPending))
	board := NewBoard(api, &notes{})
	ctx := context.Background()
	require.NoError(t, board.Refresh(ctx))

	want := []models.OrderStatus{
		models.StatusConfirmed,
		models.StatusPreparing,
		models.StatusReady,
		models.StatusOutForDelivery,
		models.StatusDelivered,
	}
	for _, status := range want {
		require.NoError(t, board.Advance(ctx, 1))
		assert.Equal(t, status, board.Orders()[0].Status)
	}

	assert.ErrorIs(t, board.Advance(ctx, 1), ErrNoNextStatus)
	assert.ErrorIs(t, board.Cancel(ctx, 1), ErrCannotCancel)
	assert.ErrorIs(t, board.Advance(ctx, 99), ErrUnknownOrder)
}

func TestRefreshCollectsEveryPage(t *testing.T) {
	api := &fakeOrders{pageSize: 20}
	var all []models.Order
	for id := int64(25); id >= 1; id-- {
		all = append(all, order(id, models.StatusPending))
	}
	api.setOrders(all...)
	board := NewBoard(api, &notes{})
	ctx := context.Background()

	require.NoError(t, board.Refresh(ctx))
	assert.Len(t, board.Orders(), 25)
	assert.Equal(t, []int{1, 2}, api.pages)

	require.NoError(t, board.Advance(ctx, 1))
	require.Len(t, api.patches, 1)
	assert.Equal(t, int64(1), api.patches[0].id)
	assert.Equal(t, models.StatusConfirmed, api.patches[0].status)
	assert.Empty(t, api.gets, "order #1 comes from the second page")

	orders := board.Orders()
	assert.Equal(t, int64(1), orders[len(orders)-1].ID)
	assert.Equal(t, models.StatusConfirmed, orders[len(orders)-1].Status)
}

func TestAdvanceFetchesOrderMissingFromBoard(t *testing.T) {
	api := &fakeOrders{}
	api.setOrders(order(7, models.StatusPending))
	board := NewBoard(api, &notes{}, WithStatusFilter(models.StatusReady))
	ctx := context.Background()

	// The board was never refreshed, so order 7 is only known to the server.
	require.NoError(t, board.Cancel(ctx, 7))
	assert.Equal(t, []int64{7}, api.gets)
	require.Len(t, api.patches, 1)
	assert.Equal(t, models.StatusCancelled, api.patches[0].status)

	assert.ErrorIs(t, board.Advance(ctx, 42), ErrUnknownOrder)
}

func TestCancelOnlyFromPending(t *testing.T) {
	api := &fakeOrders{}
	api.setOrders(order(1, models.StatusConfirmed))
	board := NewBoard(api, &notes{})
	require.NoError(t, board.Refresh(context.Background()))

	assert.ErrorIs(t, board.Cancel(context.Background(), 1), ErrCannotCancel)
	assert.Empty(t, api.patches)
}

func TestConflictRefreshes(t *testing.T) {
	api := &conflictOrders{fakeOrders: &fakeOrders{}}
	api.setOrders(order(1, models.StatusPending))
	n := &notes{}
	board := NewBoard(api, n)
	ctx := context.Background()
	require.NoError(t, board.Refresh(ctx))

	err := board.Advance(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 2, api.listCount(), "a conflict triggers a refetch")
	assert.Equal(t, []string{"la commande a été modifiée"}, n.errors)
}

type conflictOrders struct {
	*fakeOrders
}

func (c *conflictOrders) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, version *int) (*models.Order, error) {
	return nil, &client.APIError{Status: http.StatusConflict, Message: "la commande a été modifiée"}
}

func TestStaleResponseDropped(t *testing.T) {
	slow := make(chan struct{})
	api := &fakeOrders{gates: []chan struct{}{slow}}
	api.setOrders(order(1, models.StatusPending))
	board := NewBoard(api, &notes{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- board.Refresh(ctx) }()
	require.Eventually(t, func() bool { return api.listCount() == 1 }, time.Second, 5*time.Millisecond)

	api.setOrders(order(1, models.StatusConfirmed))
	require.NoError(t, board.Refresh(ctx))
	assert.Equal(t, models.StatusConfirmed, board.Orders()[0].Status)

	close(slow)
	require.NoError(t, <-done)
	assert.Equal(t, models.StatusConfirmed, board.Orders()[0].Status, "the older response must not overwrite the newer one")
}

func TestRunPausesAndNudges(t *testing.T) {
	api := &fakeOrders{}
	board := NewBoard(api, &notes{}, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- board.Run(ctx) }()

	require.Eventually(t, func() bool { return api.listCount() == 1 }, time.Second, 5*time.Millisecond)

	board.Nudge()
	require.Eventually(t, func() bool { return api.listCount() == 2 }, time.Second, 5*time.Millisecond)

	board.Pause()
	board.Nudge()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, api.listCount(), "a paused board does not refresh")

	board.Resume()
	require.Eventually(t, func() bool { return api.listCount() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRunKeepsPollingAfterErrors(t *testing.T) {
	api := &fakeOrders{listErr: &client.APIError{Status: http.StatusInternalServerError}}
	board := NewBoard(api, &notes{}, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- board.Run(ctx) }()

	require.Eventually(t, func() bool { return api.listCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestWatchNudgesOnEvents(t *testing.T) {
	board := NewBoard(&fakeOrders{}, &notes{})

	stream := func(ctx context.Context, fn func(events.OrderEvent)) error {
		fn(events.OrderEvent{Type: events.TypeOrderCreated, OrderID: 3})
		return nil
	}
	require.NoError(t, board.Watch(context.Background(), stream))

	select {
	case <-board.nudge:
	default:
		t.Fatal("expected a pending nudge")
	}
}

// A 401 on the admin list removes the token, navigates to login once and
// stops the poll loop.
func TestUnauthorizedStopsBoard(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"jeton invalide"}`)
	}))
	defer srv.Close()

	tokens := client.NewMemoryTokenStore("expired")
	api := client.New(srv.URL, tokens)

	var mu sync.Mutex
	var routes []ui.Route
	api.OnUnauthorized(func() {
		mu.Lock()
		routes = append(routes, ui.RouteLogin)
		mu.Unlock()
	})

	board := NewBoard(api, &notes{}, WithInterval(5*time.Millisecond))
	err := board.Run(context.Background())

	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Empty(t, tokens.Token())
	assert.Equal(t, []ui.Route{ui.RouteLogin}, routes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	assert.ErrorIs(t, board.Refresh(context.Background()), ErrBoardStopped)
}

func TestRestartAfterUnauthorized(t *testing.T) {
	api := &fakeOrders{listErr: client.ErrUnauthorized}
	api.setOrders(order(1, models.StatusPending))
	board := NewBoard(api, &notes{}, WithInterval(time.Hour))
	ctx := context.Background()

	assert.ErrorIs(t, board.Refresh(ctx), client.ErrUnauthorized)
	assert.ErrorIs(t, board.Refresh(ctx), ErrBoardStopped)
	assert.Equal(t, 1, api.listCount())

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()
	board.Restart()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- board.Run(runCtx) }()
	require.Eventually(t, func() bool { return len(board.Orders()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestBoardAgainstClient(t *testing.T) {
	var gotPatch map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			status := "en_attente"
			if gotPatch != nil {
				status = "annulee"
			}
			io.WriteString(w, `{"items":[{"id":4,"numero_commande":"CMD-4","statut":"`+status+`","version":2}],"total":1,"page":1,"page_size":20,"total_pages":1}`)
		case http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&gotPatch)
			io.WriteString(w, `{"id":4,"statut":"annulee","version":3}`)
		}
	}))
	defer srv.Close()

	board := NewBoard(client.New(srv.URL, client.NewMemoryTokenStore("tok")), &notes{})
	ctx := context.Background()

	require.NoError(t, board.Refresh(ctx))
	require.NoError(t, board.Cancel(ctx, 4))

	assert.Equal(t, "annulee", gotPatch["statut"])
	assert.Equal(t, float64(2), gotPatch["version"])
	assert.Equal(t, models.StatusCancelled, board.Orders()[0].Status)
}
