package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

func (s *RESTServer) createCapsule(w http.ResponseWriter, r *http.Request) {
	var draft wire.CapsuleDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.capsules.Create(r.Context(), userFrom(r.Context()), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c.Wire(s.capsules.Now()))
}

func (s *RESTServer) listCapsules(w http.ResponseWriter, r *http.Request) {
	list, err := s.capsules.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	now := s.capsules.Now()
	out := make([]*wire.Capsule, 0, len(list))
	for _, c := range list {
		out = append(out, c.Wire(now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *RESTServer) getCapsule(w http.ResponseWriter, r *http.Request) {
	c, err := s.capsules.Get(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Wire(s.capsules.Now()))
}

func (s *RESTServer) updateCapsule(w http.ResponseWriter, r *http.Request) {
	var upd wire.CapsuleUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.capsules.Update(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Wire(s.capsules.Now()))
}

func (s *RESTServer) deleteCapsule(w http.ResponseWriter, r *http.Request) {
	if err := s.capsules.Delete(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
