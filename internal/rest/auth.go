package rest

import (
	"net/http"
	"strings"

	"github.com/scangate/gateway/internal/auth"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

// withAuth extracts and verifies a Bearer token before delegating to h.
func (s *Server) withAuth(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		h(w, r, claims)
	}
}
