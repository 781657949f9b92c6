package http

import (
	"net/http"

	"github.com/google/uuid"

	"ctalara/internal/core"
)

const sessionCookie = "ctalara_sid"

// session returns the caller's session id and its last selection. A missing
// or unknown cookie starts a new session on the default selection.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, core.Selection) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id != "" {
		if sel, ok := s.sessions.Load(id); ok {
			return id, sel
		}
	} else {
		id = uuid.NewString()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return id, core.DefaultSelection(s.dataset)
}
