package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/auth"
	"github.com/safar/monmiam/internal/cache"
	"github.com/safar/monmiam/internal/events"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/store"
)

// Store is the persistence surface the handlers need. *store.Store
// implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateCustomer(ctx context.Context, in store.NewCustomer) (*models.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)

	CreateArticle(ctx context.Context, in models.ArticleInput) (*models.Article, error)
	GetArticle(ctx context.Context, id int64) (*models.Article, error)
	ListArticles(ctx context.Context, onlyAvailable bool) ([]models.Article, error)
	UpdateArticle(ctx context.Context, id int64, in models.ArticleInput) (*models.Article, error)
	DeleteArticle(ctx context.Context, id int64) error
	ToggleArticle(ctx context.Context, id int64, field string) (*models.Article, error)

	CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, bool, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderHistory(ctx context.Context, id int64) ([]models.StatusLogEntry, error)
	ListAllOrders(ctx context.Context, filter store.OrderFilter) (*store.OffsetPage[models.Order], error)
	ListCustomerOrders(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage[models.Order], error)
	UpdateOrderStatus(ctx context.Context, id int64, change store.StatusChange) (*models.Order, models.OrderStatus, error)

	CreateResource(ctx context.Context, kind models.ResourceKind, data map[string]any) (*models.Resource, error)
	GetResource(ctx context.Context, kind models.ResourceKind, id int64) (*models.Resource, error)
	ListResources(ctx context.Context, kind models.ResourceKind, activeField string) ([]models.Resource, error)
	UpdateResource(ctx context.Context, kind models.ResourceKind, id int64, data map[string]any, expectedVersion *int) (*models.Resource, error)
	DeleteResource(ctx context.Context, kind models.ResourceKind, id int64) error
	ToggleResource(ctx context.Context, kind models.ResourceKind, id int64, field string) (*models.Resource, error)
}

type IdempotencyStore interface {
	Key(scope, key string) string
	Reserve(ctx context.Context, key, requestHash string) (*cache.Record, bool, error)
	Complete(ctx context.Context, key string, rec cache.Record) error
	Release(ctx context.Context, key string) error
}

type Options struct {
	Store       Store
	Issuer      *auth.Issuer
	Publisher   events.Publisher
	Hub         *events.Hub
	Idempotency IdempotencyStore
	Limiter     *RateLimiter
	Logger      *zap.Logger
	PublicURL   string
}

type Server struct {
	store     Store
	issuer    *auth.Issuer
	publisher events.Publisher
	hub       *events.Hub
	idem      IdempotencyStore
	limiter   *RateLimiter
	logger    *zap.Logger
	publicURL string
}

func NewServer(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		issuer:    opts.Issuer,
		publisher: opts.Publisher,
		hub:       opts.Hub,
		idem:      opts.Idempotency,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		publicURL: opts.PublicURL,
	}
	if s.publisher == nil {
		s.publisher = events.Multi{}
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(0, 0)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Router wires every endpoint. Cross-cutting middleware (CORS, logging,
// security headers) is applied by the caller.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "ressource introuvable")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "méthode non autorisée")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/auth/register", s.limiter.Limit(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	r.Handle("/auth/login", s.limiter.Limit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/menu", s.handleMenu).Methods(http.MethodGet)
	r.HandleFunc("/promotions", s.handlePublicResources(models.KindPromotions, "active")).Methods(http.MethodGet)
	r.HandleFunc("/evenements", s.handlePublicResources(models.KindEvents, "actif")).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.issuer.Authenticate)

	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	authed.Handle("/orders", s.limiter.Limit(s.idempotent(http.HandlerFunc(s.handleCreateOrder)))).Methods(http.MethodPost)
	authed.HandleFunc("/commandes", s.handleMyOrders).Methods(http.MethodGet)
	authed.HandleFunc("/commandes/{id:[0-9]+}", s.handleGetOrder).Methods(http.MethodGet)
	authed.HandleFunc("/commandes/{id:[0-9]+}/qrcode", s.handleOrderQRCode).Methods(http.MethodGet)
	authed.HandleFunc("/commandes/{id:[0-9]+}/recu", s.handleOrderReceipt).Methods(http.MethodGet)
	authed.HandleFunc("/reclamations", s.handleFileComplaint).Methods(http.MethodPost)

	staff := authed.PathPrefix("/admin").Subrouter()
	staff.Use(auth.RequireStaff)

	staff.HandleFunc("/commandes-all", s.handleListAllOrders).Methods(http.MethodGet)
	staff.HandleFunc("/commandes/stream", s.handleOrderStream).Methods(http.MethodGet)
	staff.HandleFunc("/commandes/{id:[0-9]+}", s.handleUpdateOrderStatus).Methods(http.MethodPatch)
	staff.HandleFunc("/commandes/{id:[0-9]+}/historique", s.handleOrderHistory).Methods(http.MethodGet)

	staff.HandleFunc("/articles", s.handleListArticles).Methods(http.MethodGet)
	staff.HandleFunc("/articles", s.handleCreateArticle).Methods(http.MethodPost)
	staff.HandleFunc("/articles/{id:[0-9]+}", s.handleGetArticle).Methods(http.MethodGet)
	staff.HandleFunc("/articles/{id:[0-9]+}", s.handleUpdateArticle).Methods(http.MethodPut)
	staff.HandleFunc("/articles/{id:[0-9]+}", s.handleDeleteArticle).Methods(http.MethodDelete)
	staff.HandleFunc("/articles/{id:[0-9]+}/toggle/{field}", s.handleToggleArticle).Methods(http.MethodPatch)

	for _, kind := range models.ResourceKinds() {
		sub := staff.PathPrefix("/" + string(kind)).Subrouter()
		if kind.AdminOnly() {
			sub.Use(auth.RequireRole(models.RoleAdmin))
		}
		s.registerResource(sub, kind)
	}

	return r
}

func (s *Server) registerResource(r *mux.Router, kind models.ResourceKind) {
	r.HandleFunc("", s.handleListResources(kind)).Methods(http.MethodGet)
	r.HandleFunc("", s.handleCreateResource(kind)).Methods(http.MethodPost)
	r.HandleFunc("/{id:[0-9]+}", s.handleGetResource(kind)).Methods(http.MethodGet)
	r.HandleFunc("/{id:[0-9]+}", s.handleUpdateResource(kind)).Methods(http.MethodPut)
	r.HandleFunc("/{id:[0-9]+}", s.handleDeleteResource(kind)).Methods(http.MethodDelete)
	r.HandleFunc("/{id:[0-9]+}/toggle/{field}", s.handleToggleResource(kind)).Methods(http.MethodPatch)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "indisponible"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) publish(r *http.Request, ev events.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish order event failed",
			zap.String("type", ev.Type),
			zap.Int64("order_id", ev.OrderID),
			zap.Error(err))
	}
}
