package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/alenastream/alenastream/internal/httputil"
)

// SessionCookieName is the cookie carrying the signed credential token.
const SessionCookieName = "token"

const apiPrefix = "/api/"

// CallerClass selects the rejection shape for unauthenticated requests:
// API callers get a structured JSON error, page callers get a redirect.
type CallerClass int

const (
	CallerPage CallerClass = iota
	CallerAPI
)

func ClassifyCaller(path string) CallerClass {
	if strings.HasPrefix(path, apiPrefix) {
		return CallerAPI
	}
	return CallerPage
}

// Verifier gates requests to private surfaces. The secret and allow-list are
// fixed at construction and shared read-only by all request handlers.
type Verifier struct {
	secret          string
	secureCookies   bool
	publicPaths     map[string]struct{}
	publicPrefixes  []string
	loginRedirectTo string
}

func NewVerifier(secret string, secureCookies bool) *Verifier {
	return &Verifier{
		secret:        secret,
		secureCookies: secureCookies,
		publicPaths: map[string]struct{}{
			"/":                  {},
			"/index.html":        {},
			"/register.html":     {},
			"/login.html":        {},
			"/api/auth/login":    {},
			"/api/auth/register": {},
		},
		publicPrefixes: []string{
			"/css", "/js", "/image", "/embed", "/public", "/favicon",
		},
		loginRedirectTo: "/",
	}
}

// IsPublic reports whether the path is on the allow-list and therefore passes
// without credential inspection.
func (v *Verifier) IsPublic(path string) bool {
	if _, ok := v.publicPaths[path]; ok {
		return true
	}
	for _, prefix := range v.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware applies the session decision procedure: allow-listed paths pass
// untouched; everything else requires a valid credential cookie. A missing or
// invalid credential is a normal outcome, not an error.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			v.reject(w, r, "Unauthorized. Please login.")
			return
		}

		claims, err := ValidateSessionToken(v.secret, cookie.Value)
		if err != nil {
			v.clearSessionCookie(w)
			v.reject(w, r, "Session expired. Please login again.")
			return
		}

		ctx := ContextWithIdentity(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, apiMessage string) {
	if ClassifyCaller(r.URL.Path) == CallerAPI {
		httputil.WriteError(w, http.StatusUnauthorized, apiMessage)
		return
	}
	http.Redirect(w, r, v.loginRedirectTo, http.StatusFound)
}

// clearSessionCookie expires the credential cookie using the same scope and
// security attributes it was issued with.
func (v *Verifier) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   v.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

type contextKey string

const identityKey contextKey = "identity"

func ContextWithIdentity(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, identityKey, claims)
}

// IdentityFromContext returns the verified identity attached by the
// Middleware, or nil when the request was not gated.
func IdentityFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(identityKey).(*Claims)
	return claims
}

// UserIDFromContext is a convenience for handlers that only need the subject.
func UserIDFromContext(ctx context.Context) string {
	if claims := IdentityFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}
