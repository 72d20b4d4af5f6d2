package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/models"
)

type contextKey string

const ctxAccountKey contextKey = "account"

// AccountLookup loads the account named by the gateway identity header.
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Identity resolves the caller's wallet account from the X-Account-ID header
// set by the upstream auth gateway (authentication itself happens there) and
// stores it in request context.
func Identity(accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-Account-ID")
			if raw == "" {
				http.Error(w, `{"error":"missing X-Account-ID header"}`, http.StatusUnauthorized)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, `{"error":"malformed X-Account-ID header"}`, http.StatusUnauthorized)
				return
			}
			acc, err := accounts.GetByID(r.Context(), id)
			if err != nil {
				http.Error(w, `{"error":"unknown account"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxAccountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalIdentity resolves the account when the header is present and
// valid, and passes the request through anonymously otherwise. Used on
// read endpoints where identity only enriches the response.
func OptionalIdentity(accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Account-ID"); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					if acc, err := accounts.GetByID(r.Context(), id); err == nil {
						r = r.WithContext(context.WithValue(r.Context(), ctxAccountKey, acc))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountFromCtx returns the resolved account or nil.
func AccountFromCtx(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxAccountKey).(*models.Account)
	return acc
}

// WithAccount returns a context carrying the given account.
func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccountKey, acc)
}
