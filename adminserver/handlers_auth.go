package adminserver

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"smiley-admin/catalog"
	"smiley-admin/session"
	"smiley-admin/storage"
)

const maxBanners = 3

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	ok, err := s.store.Config.ValidateAdminPassword(r.Context(), req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	if !ok {
		log.Warn().Str("remote", r.RemoteAddr).Msg("admin login rejected")
		respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid verification code"})
		return
	}
	sess := s.admins.Create(session.AdminOpenID)
	log.Info().Str("openid", sess.OpenID).Time("expiresAt", sess.ExpiresAt).Msg("admin logged in")
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := adminFrom(r.Context()); ok {
		log.Info().Str("openid", sess.OpenID).Msg("admin logged out")
	}
	s.admins.Clear(bearerToken(r))
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type dashboardResponse struct {
	*catalog.Counts
	Banners []string `json:"banners"`
}

// dashboard reports collection sizes and up to three carousel banners. Banner
// lookup failures only leave the list empty.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dashboardResponse{Counts: counts, Banners: s.banners(r.Context())})
}

func (s *Server) banners(ctx context.Context) []string {
	out := []string{}
	ids, err := s.store.Config.StringList(ctx, catalog.KeyCarousel)
	if err == nil && len(ids) == 0 {
		ids, err = s.store.Config.StringList(ctx, catalog.KeyBanners)
	}
	if err != nil || len(ids) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	urls := s.resolve(ctx, ids)
	for _, id := range ids {
		if len(out) == maxBanners {
			break
		}
		if u := urls[id]; u != "" {
			out = append(out, u)
		}
	}
	return out
}

// resolve maps every reference to a displayable URL where possible. Plain URLs map
// to themselves; failures are logged and skipped.
func (s *Server) resolve(ctx context.Context, refs []string) map[string]string {
	out := make(map[string]string, len(refs))
	var ids []string
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if storage.IsFileID(ref) {
			ids = append(ids, ref)
		} else {
			out[ref] = ref
		}
	}
	if len(ids) == 0 {
		return out
	}
	resolved, err := s.blobs.TempURLs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int("ids", len(ids)).Msg("could not resolve previews")
		return out
	}
	for _, t := range resolved {
		if t.URL != "" {
			out[t.FileID] = t.URL
		}
	}
	return out
}
