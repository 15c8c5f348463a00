package httpmw

import (
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/pkg/httputil"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Auth определяет пользователя один раз на запрос и кладёт его UUID в контекст.
func Auth(a security.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, err := a.Authenticate(ctx, security.CredentialsFromRequest(r))
			if err != nil {
				logger.FromCtx(ctx).WarnContext(ctx, "auth rejected", "err", err)
				httputil.Error(ctx, w, http.StatusUnauthorized, "unauthorized", map[string]any{"reason": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(security.WithUserID(ctx, userID)))
		})
	}
}
