package api

import (
	"context"
	"net/http"

	"github.com/firesense/fire-alert-service/internal/auth"
	"github.com/firesense/fire-alert-service/internal/db"
)

type contextKey string

const profileKey contextKey = "profile"

// corsMiddleware answers preflight requests and stamps permissive CORS
// headers on everything else, matching what the dashboard expects.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the bearer token to a profile and stores it in the
// request context
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		profile, err := h.authn.Authenticate(r.Context(), token)
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), profileKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuthority restricts a route to authority accounts. Must run
// inside requireAuth.
func (h *Handler) requireAuthority(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := profileFrom(r.Context())
		if profile == nil || profile.UserType != db.UserTypeAuthority {
			errorJSON(w, http.StatusForbidden, "authority account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func profileFrom(ctx context.Context) *db.Profile {
	profile, _ := ctx.Value(profileKey).(*db.Profile)
	return profile
}
