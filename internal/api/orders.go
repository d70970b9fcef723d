package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/auth"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/events"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/store"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var body models.CreateOrderRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	// Older clients omit customer_id; anyone else may only order for themselves.
	if body.CustomerID != 0 && body.CustomerID != claims.CustomerID {
		respondError(w, http.StatusForbidden, "vous ne pouvez commander que pour votre propre compte")
		return
	}
	if err := body.Validate(); err != nil {
		s.handleError(w, r, err)
		return
	}

	req := store.NewCreateOrderRequest(claims.CustomerID, r.Header.Get("Idempotency-Key"), body)
	order, replayed, err := s.store.CreateOrder(r.Context(), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		respondJSON(w, http.StatusOK, order)
		return
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("customer_id", order.CustomerID),
		zap.String("total", order.TotalAmount.String()))
	s.publish(r, events.OrderCreated(order))

	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	page, err := s.store.ListCustomerOrders(r.Context(), claims.CustomerID, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// visibleOrder loads an order the caller may see. Customers asking for
// someone else's order get the same 404 as for a missing one.
func (s *Server) visibleOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant de commande invalide")
		return nil, false
	}

	order, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return nil, false
	}

	claims, _ := auth.ClaimsFrom(r.Context())
	if order.CustomerID != claims.CustomerID && !claims.IsStaff() {
		s.handleError(w, r, database.ErrOrderNotFound)
		return nil, false
	}
	return order, true
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.visibleOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleOrderQRCode(w http.ResponseWriter, r *http.Request) {
	order, ok := s.visibleOrder(w, r)
	if !ok {
		return
	}

	png, err := pickupQRCode(s.publicURL, order)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleOrderReceipt(w http.ResponseWriter, r *http.Request) {
	order, ok := s.visibleOrder(w, r)
	if !ok {
		return
	}

	pdf, err := renderReceipt(s.publicURL, order)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=recu-"+order.OrderNumber+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (s *Server) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	filter := store.OrderFilter{
		Status:   models.OrderStatus(r.URL.Query().Get("statut")),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "page_size"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		verr := &models.ValidationError{}
		verr.Add("statut", "statut inconnu")
		respondValidation(w, verr)
		return
	}

	page, err := s.store.ListAllOrders(r.Context(), filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant de commande invalide")
		return
	}

	var req models.StatusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		verr := &models.ValidationError{}
		verr.Add("statut", "statut inconnu")
		respondValidation(w, verr)
		return
	}

	claims, _ := auth.ClaimsFrom(r.Context())
	order, previous, err := s.store.UpdateOrderStatus(r.Context(), id, store.StatusChange{
		To:              req.Status,
		ExpectedVersion: req.Version,
		ChangedBy:       claims.CustomerID,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(order.Status)),
		zap.Int64("changed_by", claims.CustomerID))
	s.publish(r, events.StatusChanged(order, previous, claims.CustomerID))

	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant de commande invalide")
		return
	}

	history, err := s.store.GetOrderHistory(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"commande_id": id,
		"historique":  history,
	})
}

func (s *Server) handleOrderStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "flux temps réel indisponible")
		return
	}
	s.hub.ServeWS(w, r)
}
