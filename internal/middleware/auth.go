package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/banking-core/internal/auth"
	"github.com/josh-kwaku/banking-core/internal/handler"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

// ServiceAuth admits requests signed by another internal service. Balance
// writes, sequence draws and ledger appends sit behind it.
func ServiceAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateServiceToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Warn("service token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			recordCaller(r.Context(), claims.Service)
			ctx := auth.ContextWithService(r.Context(), claims.Service)
			ctx = logging.With(ctx, "caller", claims.Service)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
