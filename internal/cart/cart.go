// Package cart holds the customer's in-progress order.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/safar/monmiam/internal/models"
)

type Line struct {
	ArticleID       int64
	Name            string
	UnitPrice       decimal.Decimal
	Quantity        int
	ImageURL        string
	RestaurantLabel string
}

func (l Line) Total() decimal.Decimal {
	return models.LineTotal(l.UnitPrice, l.Quantity)
}

// Cart is safe for concurrent use. Every mutation bumps Revision, which
// checkout uses to tell one cart content from the next.
type Cart struct {
	mu       sync.RWMutex
	lines    []Line
	revision uint64
}

func New() *Cart {
	return &Cart{}
}

// LineFromArticle builds a one-unit line for a menu article.
func LineFromArticle(a models.Article) Line {
	return Line{
		ArticleID: a.ID,
		Name:      a.Name,
		UnitPrice: a.Price,
		Quantity:  1,
		ImageURL:  a.ImageURL,
	}
}

// AddLine appends line, or adds its quantity to the existing line for the
// same article.
func (c *Cart) AddLine(line Line) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ArticleID == line.ArticleID {
			c.lines[i].Quantity += line.Quantity
			c.revision++
			return
		}
	}
	c.lines = append(c.lines, line)
	c.revision++
}

// UpdateQuantity moves a line's quantity by delta, never below 1. Unknown
// ids are ignored.
func (c *Cart) UpdateQuantity(articleID int64, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ArticleID == articleID {
			c.lines[i].Quantity = max(1, c.lines[i].Quantity+delta)
			c.revision++
			return
		}
	}
}

func (c *Cart) SetQuantity(articleID int64, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ArticleID == articleID {
			c.lines[i].Quantity = max(1, quantity)
			c.revision++
			return
		}
	}
}

func (c *Cart) RemoveLine(articleID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.ArticleID != articleID {
			kept = append(kept, l)
		}
	}
	c.lines = kept
	c.revision++
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.revision++
}

// Lines returns a copy of the cart content.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines) == 0
}

func (c *Cart) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Snapshot returns the lines together with the revision they belong to.
func (c *Cart) Snapshot() ([]Line, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out, c.revision
}

// ComputeTotals prices lines for the given service type.
func ComputeTotals(lines []Line, service models.ServiceType) models.Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	return models.PriceSubtotal(subtotal, service)
}
