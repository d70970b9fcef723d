// Package ui defines how the storefront and admin flows talk back to the
// person using them, and a terminal implementation for miamctl.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

type Route string

const (
	RouteLogin       Route = "/login"
	RouteDashboard   Route = "/dashboard"
	RouteMenu        Route = "/menu"
	RouteAdminOrders Route = "/admin/commandes"
)

// Notifier surfaces messages. Alert is for blocking problems the user must
// fix before retrying.
type Notifier interface {
	Alert(msg string)
	Success(msg string)
	Error(msg string)
}

type Navigator interface {
	Navigate(route Route)
}

type NavigatorFunc func(Route)

func (f NavigatorFunc) Navigate(route Route) { f(route) }

// Confirmer asks a yes/no question and blocks until it is answered.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmerFunc func(string) bool

func (f ConfirmerFunc) Confirm(prompt string) bool { return f(prompt) }

// Terminal writes notifications to Out and reads confirmations from In.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	in    *bufio.Reader
	route Route
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Alert(msg string)   { t.printf("! %s\n", msg) }
func (t *Terminal) Success(msg string) { t.printf("✓ %s\n", msg) }
func (t *Terminal) Error(msg string)   { t.printf("✗ %s\n", msg) }

func (t *Terminal) Navigate(route Route) {
	t.mu.Lock()
	t.route = route
	t.mu.Unlock()

	if route == RouteLogin {
		t.printf("→ connectez-vous avec « miamctl login »\n")
	}
}

// Route is the last place the flow asked to go.
func (t *Terminal) Route() Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.route
}

func (t *Terminal) Confirm(prompt string) bool {
	t.printf("%s [o/N] ", prompt)

	answer, err := t.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "o", "oui", "y", "yes":
		return true
	}
	return false
}

func (t *Terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}
