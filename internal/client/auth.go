package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/safar/monmiam/internal/models"
)

type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Customer  *models.Customer `json:"client"`
}

type Registration struct {
	Email    string `json:"email"`
	Name     string `json:"nom"`
	Phone    string `json:"telephone,omitempty"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	}, &session)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(session.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &session, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (*Session, error) {
	var session Session
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: reg}, &session); err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(session.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &session, nil
}

// Me resolves the customer behind the stored token.
func (c *Client) Me(ctx context.Context) (*models.Customer, error) {
	var customer models.Customer
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *Client) Logout() error {
	return c.tokens.Clear()
}
