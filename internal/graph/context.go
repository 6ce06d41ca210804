package graph

import (
	"context"
	"net/http"
	"strings"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/service"
)

type contextKey string

const viewerContextKey contextKey = "viewer"

// viewer is the authentication state of a request. Exactly one of user and
// err is set when a token was presented; both are nil for anonymous requests.
type viewer struct {
	user *domain.User
	err  error
}

// AuthContext returns middleware that resolves the Authorization header into
// a viewer on the request context. A missing header is anonymous. A present
// but invalid token does not fail the request here; the error is carried on
// the context so that operations requiring authentication can surface it.
func AuthContext(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			v := &viewer{}
			user, err := authService.UserFromToken(r.Context(), strings.TrimSpace(header[7:]))
			if err != nil {
				v.err = err
			} else {
				v.user = user
			}

			ctx := context.WithValue(r.Context(), viewerContextKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// viewerFrom returns the viewer stored on the context, or nil for anonymous
// requests.
func viewerFrom(ctx context.Context) *viewer {
	v, _ := ctx.Value(viewerContextKey).(*viewer)
	return v
}

// UserFrom returns the authenticated user on the context. Anonymous requests
// yield (nil, nil); a request that presented an invalid token yields the
// verification error.
func UserFrom(ctx context.Context) (*domain.User, error) {
	v := viewerFrom(ctx)
	if v == nil {
		return nil, nil
	}
	if v.err != nil {
		return nil, v.err
	}
	return v.user, nil
}
