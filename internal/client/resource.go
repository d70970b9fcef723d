package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/safar/monmiam/internal/models"
)

// Resource is the typed CRUD surface of one admin collection.
type Resource[T any] struct {
	c    *Client
	path string
}

func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

func (r *Resource[T]) Path() string {
	return r.path
}

func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	if err := r.c.do(ctx, request{method: http.MethodGet, path: r.path}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	var item T
	if err := r.c.do(ctx, request{method: http.MethodGet, path: r.itemPath(id)}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Resource[T]) Create(ctx context.Context, form any) (*T, error) {
	var item T
	if err := r.c.do(ctx, request{method: http.MethodPost, path: r.path, body: form}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Resource[T]) Update(ctx context.Context, id int64, form any) (*T, error) {
	var item T
	if err := r.c.do(ctx, request{method: http.MethodPut, path: r.itemPath(id), body: form}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, request{method: http.MethodDelete, path: r.itemPath(id)}, nil)
}

func (r *Resource[T]) Toggle(ctx context.Context, id int64, field string) (*T, error) {
	var item T
	if err := r.c.do(ctx, request{method: http.MethodPatch, path: r.itemPath(id) + "/toggle/" + field}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Resource[T]) itemPath(id int64) string {
	return fmt.Sprintf("%s/%d", r.path, id)
}

func (c *Client) Articles() *Resource[models.Article] {
	return NewResource[models.Article](c, "/admin/articles")
}

func (c *Client) Employees() *Resource[models.Employee] {
	return NewResource[models.Employee](c, "/admin/"+string(models.KindEmployees))
}

func (c *Client) Promotions() *Resource[models.Promotion] {
	return NewResource[models.Promotion](c, "/admin/"+string(models.KindPromotions))
}

func (c *Client) Events() *Resource[models.Event] {
	return NewResource[models.Event](c, "/admin/"+string(models.KindEvents))
}

func (c *Client) Complaints() *Resource[models.Complaint] {
	return NewResource[models.Complaint](c, "/admin/"+string(models.KindComplaints))
}

func (c *Client) Settings() *Resource[models.Setting] {
	return NewResource[models.Setting](c, "/admin/"+string(models.KindSettings))
}
