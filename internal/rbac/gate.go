package rbac

import (
	"log/slog"
	"net/http"

	"github.com/brightwave/portal-api/internal/shared"
)

// AuthContext is the resolved identity a handler receives on a successful
// permission check.
type AuthContext struct {
	Principal shared.Principal
	Role      string
}

// Gate resolves the calling principal and checks required permissions.
type Gate struct {
	logger *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger}
}

// Require resolves the session principal and checks the permission.
// Denials come back as shared.ErrUnauthenticated (no session) or
// shared.ErrForbidden (authenticated, insufficient role) so handlers can
// short-circuit without logging them as business failures.
func (g *Gate) Require(r *http.Request, perm Permission) (AuthContext, error) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		return AuthContext{}, shared.ErrUnauthenticated
	}
	if !RoleAllows(principal.Role, perm) {
		if g.logger != nil {
			g.logger.Warn("permission denied",
				slog.Int64("user_id", principal.UserID),
				slog.String("role", principal.Role),
				slog.String("permission", string(perm)))
		}
		return AuthContext{}, shared.ErrForbidden
	}
	return AuthContext{Principal: *principal, Role: principal.Role}, nil
}
