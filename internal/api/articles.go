package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/safar/monmiam/internal/models"
)

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.ListArticles(r.Context(), true)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, articles)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.ListArticles(r.Context(), r.URL.Query().Get("disponible") == "true")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, articles)
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var in models.ArticleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		s.handleError(w, r, err)
		return
	}

	article, err := s.store.CreateArticle(r.Context(), in)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, article)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant d'article invalide")
		return
	}

	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant d'article invalide")
		return
	}

	var in models.ArticleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		s.handleError(w, r, err)
		return
	}

	article, err := s.store.UpdateArticle(r.Context(), id, in)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant d'article invalide")
		return
	}

	if err := s.store.DeleteArticle(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "identifiant d'article invalide")
		return
	}

	article, err := s.store.ToggleArticle(r.Context(), id, mux.Vars(r)["field"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}
