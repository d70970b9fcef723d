package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	CustomerID       int64
	IdempotencyKey   string
	ServiceType      models.ServiceType
	ArrivalTime      string
	PaymentMethod    models.PaymentMethod
	DeliveryBuilding string
	DeliveryPhone    string
	// ExpectedTotal is the amount the customer saw. Zero skips the check.
	ExpectedTotal decimal.Decimal
	Items         []OrderItemRequest
}

type OrderItemRequest struct {
	ArticleID int64
	Quantity  int
}

// NewCreateOrderRequest maps a decoded POST /orders body for customerID.
func NewCreateOrderRequest(customerID int64, idempotencyKey string, body models.CreateOrderRequest) CreateOrderRequest {
	req := CreateOrderRequest{
		CustomerID:     customerID,
		IdempotencyKey: idempotencyKey,
		ServiceType:    body.ServiceType,
		ArrivalTime:    body.ArrivalTime,
		PaymentMethod:  body.PaymentMethod,
		ExpectedTotal:  body.TotalAmount,
	}
	if body.ServiceType == models.ServiceDelivery {
		req.DeliveryBuilding = body.DeliveryBuilding
		req.DeliveryPhone = body.DeliveryPhone
	}
	for _, item := range body.Items {
		req.Items = append(req.Items, OrderItemRequest{ArticleID: item.ArticleID, Quantity: item.Quantity})
	}
	return req
}

type StatusChange struct {
	To models.OrderStatus
	// ExpectedVersion, when set, must match the order's current version.
	ExpectedVersion *int
	ChangedBy       int64
}

type OrderFilter struct {
	Status   models.OrderStatus
	Page     int
	PageSize int
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const orderColumns = `o.id, o.customer_id, o.order_number, o.status, o.payment_status, o.service_type,
	o.arrival_time, o.payment_method, o.delivery_building, o.delivery_phone, o.subtotal, o.delivery_fee,
	o.total_amount, o.loyalty_points, o.created_at, o.updated_at, o.version,
	c.name, c.email, c.phone`

func scanOrder(row interface{ Scan(...any) error }, o *models.Order) error {
	customer := &models.OrderCustomer{}
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.OrderNumber,
		&o.Status,
		&o.PaymentStatus,
		&o.ServiceType,
		&o.ArrivalTime,
		&o.PaymentMethod,
		&o.DeliveryBuilding,
		&o.DeliveryPhone,
		&o.Subtotal,
		&o.DeliveryFee,
		&o.TotalAmount,
		&o.LoyaltyPoints,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
	)
	if err != nil {
		return err
	}
	o.Customer = customer
	return nil
}

func generateOrderNumber() string {
	return fmt.Sprintf("CMD-%s-%s", time.Now().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// CreateOrder prices the order from current article prices and stores it.
// A second call with the same customer and idempotency key returns the
// first order and replayed == true instead of creating a duplicate.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (order *models.Order, replayed bool, err error) {
	if len(req.Items) == 0 {
		return nil, false, database.ErrEmptyOrder
	}

	err = database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		replayed = false

		if req.IdempotencyKey != "" {
			existingID, found, err := findOrderByKey(ctx, tx, req.CustomerID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				order, err = getOrder(ctx, tx, existingID)
				replayed = err == nil
				return err
			}
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)",
			req.CustomerID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check customer exists: %w", err)
		}
		if !exists {
			return database.ErrCustomerNotFound
		}

		// Lock in id order so concurrent orders for the same articles
		// cannot deadlock each other.
		ids := distinctArticleIDs(req.Items)
		articles := make(map[int64]*models.Article, len(ids))
		for _, id := range ids {
			article, err := lockArticleNoWait(ctx, tx, id)
			if err != nil {
				return err
			}
			articles[id] = article
		}

		subtotal := decimal.Zero
		for _, item := range req.Items {
			subtotal = subtotal.Add(models.LineTotal(articles[item.ArticleID].Price, item.Quantity))
		}
		totals := models.PriceSubtotal(subtotal, req.ServiceType)

		if !req.ExpectedTotal.IsZero() && !req.ExpectedTotal.Equal(totals.Total) {
			v := &models.ValidationError{}
			v.Add("montant_total", fmt.Sprintf("le montant a changé, nouveau total: %s", totals.Total.StringFixed(0)))
			return v
		}

		var key sql.NullString
		if req.IdempotencyKey != "" {
			key = sql.NullString{String: req.IdempotencyKey, Valid: true}
		}

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (customer_id, order_number, status, payment_status, service_type, arrival_time,
			                     payment_method, delivery_building, delivery_phone, subtotal, delivery_fee,
			                     total_amount, loyalty_points, idempotency_key, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW(), 1)
			 RETURNING id`,
			req.CustomerID, generateOrderNumber(), models.StatusPending, models.PaymentPending, req.ServiceType,
			req.ArrivalTime, req.PaymentMethod, req.DeliveryBuilding, req.DeliveryPhone, totals.Subtotal,
			totals.ServiceFee, totals.Total, totals.LoyaltyPoints, key).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range req.Items {
			article := articles[item.ArticleID]
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, article_id, name, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
				orderID, article.ID, article.Name, item.Quantity, article.Price,
				models.LineTotal(article.Price, item.Quantity))
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		if err := logStatus(ctx, tx, orderID, models.StatusPending, req.CustomerID); err != nil {
			return err
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		// A concurrent request with the same key won the insert.
		if req.IdempotencyKey != "" && database.IsUniqueViolation(err, "orders_customer_idempotency_key") {
			existingID, found, findErr := findOrderByKey(ctx, db, req.CustomerID, req.IdempotencyKey)
			if findErr == nil && found {
				order, err = getOrder(ctx, db, existingID)
				return order, err == nil, err
			}
		}
		return nil, false, err
	}

	return order, replayed, nil
}

func distinctArticleIDs(items []OrderItemRequest) []int64 {
	seen := make(map[int64]bool, len(items))
	var ids []int64
	for _, item := range items {
		if !seen[item.ArticleID] {
			seen[item.ArticleID] = true
			ids = append(ids, item.ArticleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func findOrderByKey(ctx context.Context, q queryer, customerID int64, key string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE customer_id = $1 AND idempotency_key = $2`,
		customerID, key).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find order by idempotency key: %w", err)
	}
	return id, true, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return getOrder(ctx, db, id)
}

func getOrder(ctx context.Context, q queryer, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`

	if err := scanOrder(q.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}

	return order, nil
}

func loadOrderItems(ctx context.Context, q queryer, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	byOrder := make(map[int64][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return byOrder, nil
	}

	query := `
		SELECT id, order_id, article_id, name, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`

	rows, err := q.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		var articleID sql.NullInt64
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&articleID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if articleID.Valid {
			item.ArticleID = &articleID.Int64
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return byOrder, nil
}

func attachItems(ctx context.Context, q queryer, orders []models.Order) error {
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	items, err := loadOrderItems(ctx, q, ids)
	if err != nil {
		return err
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return nil
}

// ListAllOrders is the staff view: every order, newest first, optionally
// filtered by status.
func ListAllOrders(ctx context.Context, db *sql.DB, filter OrderFilter) (*OffsetPage[models.Order], error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize)

	var status sql.NullString
	if filter.Status != "" {
		status = sql.NullString{String: string(filter.Status), Valid: true}
	}

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1::text IS NULL OR status = $1)`, status).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE ($1::text IS NULL OR o.status = $1)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, status, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

func ListCustomerOrders(ctx context.Context, db *sql.DB, customerID int64, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	_, limit = NormalizePage(1, limit)

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.customer_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateOrderStatus moves an order one step along the status flow (or to
// annulee from en_attente) and returns the updated order with the status it
// left. Delivery credits the order's loyalty points to its customer.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, change StatusChange) (*models.Order, models.OrderStatus, error) {
	var order *models.Order
	var previous models.OrderStatus

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var customerID int64
		var version, points int

		err := tx.QueryRowContext(ctx,
			`SELECT status, version, customer_id, loyalty_points
			 FROM orders
			 WHERE id = $1
			 FOR UPDATE`,
			id).Scan(&previous, &version, &customerID, &points)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if change.ExpectedVersion != nil && *change.ExpectedVersion != version {
			return database.ErrVersionConflict
		}

		if !models.CanTransition(previous, change.To) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, previous, change.To)
		}

		paymentStatus := sql.NullString{}
		switch change.To {
		case models.StatusDelivered:
			paymentStatus = sql.NullString{String: string(models.PaymentPaid), Valid: true}
		case models.StatusCancelled:
			paymentStatus = sql.NullString{String: string(models.PaymentRefunded), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $1,
			     payment_status = COALESCE($2, payment_status),
			     updated_at = NOW(),
			     version = version + 1
			 WHERE id = $3`,
			change.To, paymentStatus, id)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if err := logStatus(ctx, tx, id, change.To, change.ChangedBy); err != nil {
			return err
		}

		if change.To == models.StatusDelivered {
			if err := creditLoyaltyPoints(ctx, tx, customerID, points); err != nil {
				return err
			}
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	return order, previous, nil
}

func logStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, changedBy int64) error {
	var by sql.NullInt64
	if changedBy != 0 {
		by = sql.NullInt64{Int64: changedBy, Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		 VALUES ($1, $2, $3, NOW())`,
		orderID, status, by)
	if err != nil {
		return fmt.Errorf("log order status: %w", err)
	}
	return nil
}

func GetOrderHistory(ctx context.Context, db *sql.DB, orderID int64) ([]models.StatusLogEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, status, changed_by, changed_at
		 FROM order_status_log
		 WHERE order_id = $1
		 ORDER BY changed_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order history: %w", err)
	}
	defer rows.Close()

	entries := []models.StatusLogEntry{}
	for rows.Next() {
		var entry models.StatusLogEntry
		var changedBy sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Status, &changedBy, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		if changedBy.Valid {
			entry.ChangedBy = &changedBy.Int64
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(entries) == 0 {
		if _, err := GetOrder(ctx, db, orderID); err != nil {
			return nil, err
		}
	}

	return entries, nil
}
