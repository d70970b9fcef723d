package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/safar/monmiam/internal/auth"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
)

// handlePublicResources lists the documents of kind whose activeField is true.
func (s *Server) handlePublicResources(kind models.ResourceKind, activeField string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resources, err := s.store.ListResources(r.Context(), kind, activeField)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, resources)
	}
}

func (s *Server) handleListResources(kind models.ResourceKind) http.HandlerFunc {
	return s.handlePublicResources(kind, "")
}

func (s *Server) handleCreateResource(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data map[string]any
		if !decodeJSON(w, r, &data) {
			return
		}
		if err := kind.Validate(data); err != nil {
			s.handleError(w, r, err)
			return
		}

		resource, err := s.store.CreateResource(r.Context(), kind, data)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, resource)
	}
}

func (s *Server) handleGetResource(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.handleError(w, r, database.ErrResourceNotFound)
			return
		}

		resource, err := s.store.GetResource(r.Context(), kind, id)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, resource)
	}
}

func (s *Server) handleUpdateResource(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.handleError(w, r, database.ErrResourceNotFound)
			return
		}

		var data map[string]any
		if !decodeJSON(w, r, &data) {
			return
		}
		if err := kind.Validate(data); err != nil {
			s.handleError(w, r, err)
			return
		}

		resource, err := s.store.UpdateResource(r.Context(), kind, id, data, expectedVersion(data))
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, resource)
	}
}

func (s *Server) handleDeleteResource(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.handleError(w, r, database.ErrResourceNotFound)
			return
		}

		if err := s.store.DeleteResource(r.Context(), kind, id); err != nil {
			s.handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleToggleResource(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.handleError(w, r, database.ErrResourceNotFound)
			return
		}

		resource, err := s.store.ToggleResource(r.Context(), kind, id, mux.Vars(r)["field"])
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, resource)
	}
}

// handleFileComplaint lets any signed-in customer open a complaint. The
// author and the processed flag are set server-side.
func (s *Server) handleFileComplaint(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var data map[string]any
	if !decodeJSON(w, r, &data) {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["client_id"] = claims.CustomerID
	data["traitee"] = false

	if err := models.KindComplaints.Validate(data); err != nil {
		s.handleError(w, r, err)
		return
	}

	resource, err := s.store.CreateResource(r.Context(), models.KindComplaints, data)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resource)
}

// expectedVersion reads the optional version echoed back by an edit form.
func expectedVersion(data map[string]any) *int {
	v, ok := data["version"].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}
