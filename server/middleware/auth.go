package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/server/auth"
	"github.com/indieinfra/pantry/server/resp"
	"github.com/indieinfra/pantry/server/util"
)

// RequireAdmin wraps a downstream handler with the admin bearer-token gate.
// It always attaches a request-scoped logger to the context. With no secret
// configured the gate is open and every request reaches next; otherwise a
// missing token is rejected with 401 and an invalid or non-admin token with 403.
func RequireAdmin(cfg *config.ServerAuth, logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg == nil || cfg.Secret == "" {
			ctx := util.ContextWithLogger(r.Context(), util.WithRequest(logger, r, ""))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			resp.WriteUnauthorized(w, "An admin token is required")
			return
		}

		claims, err := auth.VerifyAdminToken(cfg, token)
		if err != nil {
			util.WithRequest(logger, r, "").Info("admin token rejected", zap.Error(err))
			resp.WriteForbidden(w, "Token validation failed")
			return
		}

		rl := util.WithRequest(logger, r, claims.Subject)
		ctx := util.ContextWithLogger(r.Context(), rl)
		next.ServeHTTP(w, r.WithContext(auth.AddToken(ctx, claims)))
	})
}
