package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/monmiam/internal/cart"
	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/ui"
)

type fakeAPI struct {
	mu       sync.Mutex
	authed   bool
	meCalls  int
	requests []models.CreateOrderRequest
	keys     []string
	errs     []error
	block    chan struct{}
}

func (f *fakeAPI) Authenticated() bool { return f.authed }

func (f *fakeAPI) Me(ctx context.Context) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	return &models.Customer{ID: 7, Role: models.RoleStudent}, nil
}

func (f *fakeAPI) CreateOrder(ctx context.Context, req models.CreateOrderRequest, key string) (*models.Order, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.keys = append(f.keys, key)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}

	totals := models.PriceSubtotal(req.TotalAmount.Sub(models.DeliveryFee(req.ServiceType, req.TotalAmount)), req.ServiceType)
	return &models.Order{
		ID:            int64(len(f.requests)),
		OrderNumber:   "CMD-TEST",
		CustomerID:    req.CustomerID,
		TotalAmount:   totals.Total,
		LoyaltyPoints: totals.LoyaltyPoints,
		Status:        models.StatusPending,
		ServiceType:   req.ServiceType,
		CreatedAt:     time.Now(),
	}, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls + len(f.requests)
}

type recorder struct {
	mu       sync.Mutex
	alerts   []string
	errors   []string
	success  []string
	navigate []ui.Route
}

func (r *recorder) Alert(msg string)   { r.mu.Lock(); r.alerts = append(r.alerts, msg); r.mu.Unlock() }
func (r *recorder) Success(msg string) { r.mu.Lock(); r.success = append(r.success, msg); r.mu.Unlock() }
func (r *recorder) Error(msg string)   { r.mu.Lock(); r.errors = append(r.errors, msg); r.mu.Unlock() }
func (r *recorder) Navigate(route ui.Route) {
	r.mu.Lock()
	r.navigate = append(r.navigate, route)
	r.mu.Unlock()
}

func newCheckout(api API, lines ...cart.Line) (*Checkout, *cart.Cart, *History, *recorder) {
	c := cart.New()
	for _, l := range lines {
		c.AddLine(l)
	}
	history := &History{}
	rec := &recorder{}
	return New(api, c, history, rec, rec), c, history, rec
}

func ndole(qty int) cart.Line {
	return cart.Line{ArticleID: 1, Name: "Ndolé", UnitPrice: decimal.NewFromInt(1000), Quantity: qty}
}

func pickup() Draft {
	return Draft{ServiceType: models.ServicePickup, ArrivalTime: "12:30", PaymentMethod: models.PaymentCash}
}

func TestSubmitEmptyCartSendsNothing(t *testing.T) {
	api := &fakeAPI{authed: true}
	co, _, _, rec := newCheckout(api)

	_, err := co.Submit(context.Background(), pickup())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, api.calls())
	assert.Len(t, rec.alerts, 1)
}

func TestSubmitDeliveryWithoutDetailsSendsNothing(t *testing.T) {
	tests := []struct {
		name     string
		building string
		phone    string
	}{
		{"no building", "", "+237690000000"},
		{"no phone", "IUI", ""},
		{"blank building", "   ", "+237690000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{authed: true}
			co, c, _, rec := newCheckout(api, ndole(1))

			_, err := co.Submit(context.Background(), Draft{
				ServiceType:      models.ServiceDelivery,
				ArrivalTime:      "12:30",
				PaymentMethod:    models.PaymentCash,
				DeliveryBuilding: tt.building,
				DeliveryPhone:    tt.phone,
			})

			assert.ErrorIs(t, err, ErrMissingDeliveryInfo)
			assert.Zero(t, api.calls())
			require.Len(t, rec.alerts, 1)
			assert.Contains(t, rec.alerts[0], "livraison")
			assert.False(t, c.Empty(), "the cart is kept for correction")
		})
	}
}

func TestSubmitWithoutTokenRedirects(t *testing.T) {
	api := &fakeAPI{authed: false}
	co, _, _, rec := newCheckout(api, ndole(1))

	_, err := co.Submit(context.Background(), pickup())

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, api.calls())
	assert.Equal(t, []ui.Route{ui.RouteLogin}, rec.navigate)
}

func TestSubmitPickupOrder(t *testing.T) {
	api := &fakeAPI{authed: true}
	co, c, history, rec := newCheckout(api, ndole(2))

	totals := co.Totals(models.ServicePickup)
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 2, totals.LoyaltyPoints)

	order, err := co.Submit(context.Background(), pickup())
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, models.ServicePickup, req.ServiceType)
	assert.True(t, req.TotalAmount.Equal(decimal.NewFromInt(2000)))
	assert.Empty(t, req.DeliveryBuilding)

	assert.Equal(t, 2, order.LoyaltyPoints)
	assert.True(t, c.Empty())
	require.Len(t, history.Entries(), 1)
	assert.Equal(t, []ui.Route{ui.RouteDashboard}, rec.navigate)
	assert.Len(t, rec.success, 1)
}

func TestSubmitDeliveryOrder(t *testing.T) {
	api := &fakeAPI{authed: true}
	co, c, history, rec := newCheckout(api, ndole(3))

	order, err := co.Submit(context.Background(), Draft{
		ServiceType:      models.ServiceDelivery,
		ArrivalTime:      "13:00",
		PaymentMethod:    models.PaymentCash,
		DeliveryBuilding: "IUI",
		DeliveryPhone:    "+237690000000",
	})
	require.NoError(t, err)

	require.Len(t, api.requests, 1, "exactly one POST /orders")
	req := api.requests[0]
	assert.Equal(t, models.ServiceDelivery, req.ServiceType)
	assert.Equal(t, int64(7), req.CustomerID)
	assert.Equal(t, "IUI", req.DeliveryBuilding)
	assert.True(t, req.TotalAmount.Equal(decimal.NewFromInt(3500)))
	require.Len(t, req.Items, 1)
	assert.Equal(t, 3, req.Items[0].Quantity)

	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, 3, order.LoyaltyPoints)
	assert.True(t, c.Empty())
	assert.Equal(t, "CMD-TEST", history.Entries()[0].OrderNumber)
	assert.Equal(t, []ui.Route{ui.RouteDashboard}, rec.navigate)
}

func TestRetryReusesIdempotencyKey(t *testing.T) {
	api := &fakeAPI{authed: true, errs: []error{&client.APIError{Status: http.StatusServiceUnavailable}}}
	keys := []string{"k1", "k2", "k3"}
	co, c, _, rec := newCheckout(api, ndole(1))
	co.newKey = func() string {
		k := keys[0]
		keys = keys[1:]
		return k
	}

	_, err := co.Submit(context.Background(), pickup())
	require.Error(t, err)
	assert.Equal(t, []string{client.GenericErrorMessage}, rec.errors)
	assert.False(t, c.Empty())

	_, err = co.Submit(context.Background(), pickup())
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k1"}, api.keys)

	c.AddLine(ndole(1))
	_, err = co.Submit(context.Background(), pickup())
	require.NoError(t, err)
	assert.Equal(t, "k2", api.keys[2], "a new cart gets a new key")
}

func TestServerMessageShownVerbatim(t *testing.T) {
	api := &fakeAPI{authed: true, errs: []error{&client.APIError{Status: http.StatusConflict, Message: "un article du panier n'est plus disponible"}}}
	co, _, _, rec := newCheckout(api, ndole(1))

	_, err := co.Submit(context.Background(), pickup())

	require.Error(t, err)
	assert.Equal(t, []string{"un article du panier n'est plus disponible"}, rec.errors)
}

func TestValidationFieldsShown(t *testing.T) {
	api := &fakeAPI{authed: true, errs: []error{&client.APIError{
		Status:  http.StatusUnprocessableEntity,
		Message: "Les données fournies sont invalides.",
		Fields:  map[string][]string{"heure_arrivee": {"format HH:MM attendu"}},
	}}}
	co, _, _, rec := newCheckout(api, ndole(1))

	_, err := co.Submit(context.Background(), pickup())

	require.Error(t, err)
	assert.Equal(t, []string{
		"Les données fournies sont invalides.",
		"heure_arrivee : format HH:MM attendu",
	}, rec.errors)
}

func TestDoubleSubmitRejected(t *testing.T) {
	api := &fakeAPI{authed: true, block: make(chan struct{})}
	co, _, _, _ := newCheckout(api, ndole(1))

	first := make(chan error, 1)
	go func() {
		_, err := co.Submit(context.Background(), pickup())
		first <- err
	}()

	require.Eventually(t, func() bool {
		co.mu.Lock()
		defer co.mu.Unlock()
		return co.submitting
	}, time.Second, 5*time.Millisecond)

	_, err := co.Submit(context.Background(), pickup())
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(api.block)
	require.NoError(t, <-first)
	assert.Len(t, api.requests, 1)
}

func TestUnauthorizedClearsTokenAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := client.NewMemoryTokenStore("expired")
	api := client.New(srv.URL, tokens)

	co, c, _, rec := newCheckout(api, ndole(1))
	api.OnUnauthorized(func() { rec.Navigate(ui.RouteLogin) })

	_, err := co.Submit(context.Background(), pickup())

	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Empty(t, tokens.Token())
	assert.Equal(t, []ui.Route{ui.RouteLogin}, rec.navigate)
	assert.False(t, c.Empty())
}
