package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/safar/monmiam/internal/events"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) CreateCustomer(ctx context.Context, in store.NewCustomer) (*models.Customer, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	args := m.Called(ctx, email)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) CreateArticle(ctx context.Context, in models.ArticleInput) (*models.Article, error) {
	args := m.Called(ctx, in)
	a, _ := args.Get(0).(*models.Article)
	return a, args.Error(1)
}

func (m *mockStore) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Article)
	return a, args.Error(1)
}

func (m *mockStore) ListArticles(ctx context.Context, onlyAvailable bool) ([]models.Article, error) {
	args := m.Called(ctx, onlyAvailable)
	a, _ := args.Get(0).([]models.Article)
	return a, args.Error(1)
}

func (m *mockStore) UpdateArticle(ctx context.Context, id int64, in models.ArticleInput) (*models.Article, error) {
	args := m.Called(ctx, id, in)
	a, _ := args.Get(0).(*models.Article)
	return a, args.Error(1)
}

func (m *mockStore) DeleteArticle(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) ToggleArticle(ctx context.Context, id int64, field string) (*models.Article, error) {
	args := m.Called(ctx, id, field)
	a, _ := args.Get(0).(*models.Article)
	return a, args.Error(1)
}

func (m *mockStore) CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, bool, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *mockStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockStore) GetOrderHistory(ctx context.Context, id int64) ([]models.StatusLogEntry, error) {
	args := m.Called(ctx, id)
	h, _ := args.Get(0).([]models.StatusLogEntry)
	return h, args.Error(1)
}

func (m *mockStore) ListAllOrders(ctx context.Context, filter store.OrderFilter) (*store.OffsetPage[models.Order], error) {
	args := m.Called(ctx, filter)
	p, _ := args.Get(0).(*store.OffsetPage[models.Order])
	return p, args.Error(1)
}

func (m *mockStore) ListCustomerOrders(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	args := m.Called(ctx, customerID, cursor, limit)
	p, _ := args.Get(0).(*store.CursorPage[models.Order])
	return p, args.Error(1)
}

func (m *mockStore) UpdateOrderStatus(ctx context.Context, id int64, change store.StatusChange) (*models.Order, models.OrderStatus, error) {
	args := m.Called(ctx, id, change)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Get(1).(models.OrderStatus), args.Error(2)
}

func (m *mockStore) CreateResource(ctx context.Context, kind models.ResourceKind, data map[string]any) (*models.Resource, error) {
	args := m.Called(ctx, kind, data)
	r, _ := args.Get(0).(*models.Resource)
	return r, args.Error(1)
}

func (m *mockStore) GetResource(ctx context.Context, kind models.ResourceKind, id int64) (*models.Resource, error) {
	args := m.Called(ctx, kind, id)
	r, _ := args.Get(0).(*models.Resource)
	return r, args.Error(1)
}

func (m *mockStore) ListResources(ctx context.Context, kind models.ResourceKind, activeField string) ([]models.Resource, error) {
	args := m.Called(ctx, kind, activeField)
	r, _ := args.Get(0).([]models.Resource)
	return r, args.Error(1)
}

func (m *mockStore) UpdateResource(ctx context.Context, kind models.ResourceKind, id int64, data map[string]any, expectedVersion *int) (*models.Resource, error) {
	args := m.Called(ctx, kind, id, data, expectedVersion)
	r, _ := args.Get(0).(*models.Resource)
	return r, args.Error(1)
}

func (m *mockStore) DeleteResource(ctx context.Context, kind models.ResourceKind, id int64) error {
	return m.Called(ctx, kind, id).Error(0)
}

func (m *mockStore) ToggleResource(ctx context.Context, kind models.ResourceKind, id int64, field string) (*models.Resource, error) {
	args := m.Called(ctx, kind, id, field)
	r, _ := args.Get(0).(*models.Resource)
	return r, args.Error(1)
}

type recordingPublisher struct {
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.OrderEvent) error {
	p.events = append(p.events, ev)
	return nil
}
