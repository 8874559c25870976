package adminserver

import (
	"encoding/json"
	"net/http"

	"smiley-admin/catalog"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Categories.List(r.Context(), pageFrom(r), r.URL.Query().Get("keyword"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.Category
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, err)
		return
	}
	c, err := s.store.Categories.Create(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.Category
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.Categories.Update(r.Context(), r.PathValue("id"), &in); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type toggleRequest struct {
	IsActive bool `json:"isActive"`
}

func (s *Server) toggleCategory(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.Categories.SetActive(r.Context(), r.PathValue("id"), req.IsActive); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "isActive": req.IsActive})
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Categories.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Tags.List(r.Context(), pageFrom(r), r.URL.Query().Get("keyword"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var in catalog.Tag
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, err)
		return
	}
	t, err := s.store.Tags.Create(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) updateTag(w http.ResponseWriter, r *http.Request) {
	var in catalog.Tag
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.Tags.Update(r.Context(), r.PathValue("id"), &in); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) deleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Tags.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Users.List(r.Context(), pageFrom(r), r.URL.Query().Get("keyword"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

type setAdminRequest struct {
	IsAdmin *bool `json:"isAdmin"`
}

func (s *Server) setAdmin(w http.ResponseWriter, r *http.Request) {
	var req setAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	isAdmin := true
	if req.IsAdmin != nil {
		isAdmin = *req.IsAdmin
	}
	if err := s.store.Users.SetAdmin(r.Context(), r.PathValue("openid"), isAdmin); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "isAdmin": isAdmin})
}

func (s *Server) getSystemConfig(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.Config.GetAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

type setConfigRequest struct {
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
}

func (s *Server) setSystemConfig(w http.ResponseWriter, r *http.Request) {
	var req setConfigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.Value) == 0 {
		respondError(w, badRequest("value is required"))
		return
	}
	key := r.PathValue("key")
	if err := s.store.Config.Set(r.Context(), key, req.Value, req.Description); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "key": key})
}
