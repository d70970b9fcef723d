package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/safar/monmiam/internal/models"
)

type OrderPage struct {
	Items      []models.Order `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

type AdminOrderPage struct {
	Items      []models.Order `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

func (c *Client) Menu(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	if err := c.do(ctx, request{method: http.MethodGet, path: "/menu"}, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// CreateOrder posts an order. Retrying with the same idempotencyKey never
// creates a second order.
func (c *Client) CreateOrder(ctx context.Context, order models.CreateOrderRequest, idempotencyKey string) (*models.Order, error) {
	req := request{method: http.MethodPost, path: "/orders", body: order}
	if idempotencyKey != "" {
		req.header = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}

	var created models.Order
	if err := c.do(ctx, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) MyOrders(ctx context.Context, cursor string, limit int) (*OrderPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var page OrderPage
	if err := c.do(ctx, request{method: http.MethodGet, path: withQuery("/commandes", q)}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/commandes/%d", id)}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Receipt downloads the PDF receipt of an order.
func (c *Client) Receipt(ctx context.Context, id int64) ([]byte, error) {
	return c.send(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/commandes/%d/recu", id)})
}

func (c *Client) AdminOrders(ctx context.Context, status models.OrderStatus, page int) (*AdminOrderPage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("statut", string(status))
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}

	var result AdminOrderPage
	if err := c.do(ctx, request{method: http.MethodGet, path: withQuery("/admin/commandes-all", q)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateOrderStatus sends {statut: status}. A non-nil version makes the
// server reject the change if the order moved on in the meantime.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, version *int) (*models.Order, error) {
	var order models.Order
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/admin/commandes/%d", id),
		body:   models.StatusUpdateRequest{Status: status, Version: version},
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) OrderHistory(ctx context.Context, id int64) ([]models.StatusLogEntry, error) {
	var body struct {
		History []models.StatusLogEntry `json:"historique"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/admin/commandes/%d/historique", id)}, &body); err != nil {
		return nil, err
	}
	return body.History, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
