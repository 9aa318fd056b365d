// FilePath: server/watchdog/api/middleware/api.middleware.auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Nerzal/gocloak/v13"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/hubservice"
)

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

// Enabled reports whether a keycloak server is configured. Without one every
// request passes unauthenticated.
func (c KeycloakConfig) Enabled() bool {
	return c.URL != ""
}

type KeycloakMiddleware struct {
	client *gocloak.GoCloak
	config KeycloakConfig
}

type UserContext struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type contextKey string

const userKey contextKey = "user"

func NewKeycloakMiddleware(config KeycloakConfig) *KeycloakMiddleware {
	k := &KeycloakMiddleware{config: config}
	if config.Enabled() {
		k.client = gocloak.NewClient(config.URL)
	}
	return k
}

// WithUser stores the authenticated user and its roles in ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return hubservice.WithUserRoles(ctx, user.Roles)
}

// UserFromContext returns the user stored by Authenticate.
func UserFromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userKey).(*UserContext)
	return user, ok
}

// Authenticate validates the token and adds user info to context
func (k *KeycloakMiddleware) Authenticate(next http.Handler) http.Handler {
	if !k.config.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}

		// Verify token
		result, err := k.client.RetrospectToken(r.Context(), token, k.config.ClientID, k.config.ClientSecret, k.config.Realm)
		if err != nil || result.Active == nil || !*result.Active {
			handleError(w, errors.NewAuthError("invalid token", err))
			return
		}

		roles, err := k.client.GetRealmRoles(r.Context(), token, k.config.Realm, gocloak.GetRoleParams{})
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get realm roles", err))
			return
		}
		claims, err := k.client.GetUserInfo(r.Context(), token, k.config.Realm)
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get user info", err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), createUserContext(claims, roles))))
	})
}

// RequireRoles middleware ensures user has required roles
func (k *KeycloakMiddleware) RequireRoles(roles []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !k.config.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				handleError(w, errors.NewAuthError("no user context found", nil))
				return
			}

			if !hasRequiredRoles(user.Roles, roles) {
				handleError(w, errors.NewAuthorizationError("insufficient permissions", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions

func createUserContext(userInfo *gocloak.UserInfo, roles []*gocloak.Role) *UserContext {
	return &UserContext{
		ID:       gocloak.PString(userInfo.Sub),
		Username: gocloak.PString(userInfo.PreferredUsername),
		Email:    gocloak.PString(userInfo.Email),
		Roles:    extractRoles(roles),
	}
}

func extractToken(r *http.Request) string {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func extractRoles(roles []*gocloak.Role) []string {
	var roleStrings []string
	for _, role := range roles {
		if role != nil && role.Name != nil {
			roleStrings = append(roleStrings, *role.Name)
		}
	}
	return roleStrings
}

func hasRequiredRoles(userRoles, requiredRoles []string) bool {
	if len(requiredRoles) == 0 {
		return true
	}

	roleMap := make(map[string]bool)
	for _, role := range userRoles {
		roleMap[role] = true
	}

	for _, required := range requiredRoles {
		if required == "*" {
			return true
		}
		if !roleMap[required] {
			return false
		}
	}
	return true
}

func handleError(w http.ResponseWriter, err error) {
	if apiErr, ok := errors.As(err); ok {
		http.Error(w, apiErr.Message, apiErr.Code)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
