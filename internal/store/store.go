package store

import (
	"context"
	"database/sql"

	"github.com/safar/monmiam/internal/models"
)

// Store binds the package functions to one connection pool so HTTP
// handlers can depend on an interface.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateCustomer(ctx context.Context, in NewCustomer) (*models.Customer, error) {
	return CreateCustomer(ctx, s.db, in)
}

func (s *Store) EnsureAdmin(ctx context.Context, in NewCustomer) (*models.Customer, error) {
	return EnsureAdmin(ctx, s.db, in)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return GetCustomer(ctx, s.db, id)
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return GetCustomerByEmail(ctx, s.db, email)
}

func (s *Store) CreateArticle(ctx context.Context, in models.ArticleInput) (*models.Article, error) {
	return CreateArticle(ctx, s.db, in)
}

func (s *Store) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	return GetArticle(ctx, s.db, id)
}

func (s *Store) ListArticles(ctx context.Context, onlyAvailable bool) ([]models.Article, error) {
	return ListArticles(ctx, s.db, onlyAvailable)
}

func (s *Store) UpdateArticle(ctx context.Context, id int64, in models.ArticleInput) (*models.Article, error) {
	return UpdateArticle(ctx, s.db, id, in)
}

func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	return DeleteArticle(ctx, s.db, id)
}

func (s *Store) ToggleArticle(ctx context.Context, id int64, field string) (*models.Article, error) {
	return ToggleArticle(ctx, s.db, id, field)
}

func (s *Store) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, bool, error) {
	return CreateOrder(ctx, s.db, req)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return GetOrder(ctx, s.db, id)
}

func (s *Store) GetOrderHistory(ctx context.Context, id int64) ([]models.StatusLogEntry, error) {
	return GetOrderHistory(ctx, s.db, id)
}

func (s *Store) ListAllOrders(ctx context.Context, filter OrderFilter) (*OffsetPage[models.Order], error) {
	return ListAllOrders(ctx, s.db, filter)
}

func (s *Store) ListCustomerOrders(ctx context.Context, customerID int64, cursor string, limit int) (*CursorPage[models.Order], error) {
	return ListCustomerOrders(ctx, s.db, customerID, cursor, limit)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, change StatusChange) (*models.Order, models.OrderStatus, error) {
	return UpdateOrderStatus(ctx, s.db, id, change)
}

func (s *Store) CreateResource(ctx context.Context, kind models.ResourceKind, data map[string]any) (*models.Resource, error) {
	return CreateResource(ctx, s.db, kind, data)
}

func (s *Store) GetResource(ctx context.Context, kind models.ResourceKind, id int64) (*models.Resource, error) {
	return GetResource(ctx, s.db, kind, id)
}

func (s *Store) ListResources(ctx context.Context, kind models.ResourceKind, activeField string) ([]models.Resource, error) {
	return ListResources(ctx, s.db, kind, activeField)
}

func (s *Store) UpdateResource(ctx context.Context, kind models.ResourceKind, id int64, data map[string]any, expectedVersion *int) (*models.Resource, error) {
	return UpdateResource(ctx, s.db, kind, id, data, expectedVersion)
}

func (s *Store) DeleteResource(ctx context.Context, kind models.ResourceKind, id int64) error {
	return DeleteResource(ctx, s.db, kind, id)
}

func (s *Store) ToggleResource(ctx context.Context, kind models.ResourceKind, id int64, field string) (*models.Resource, error) {
	return ToggleResource(ctx, s.db, kind, id, field)
}
