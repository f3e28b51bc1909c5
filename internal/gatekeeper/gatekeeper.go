package gatekeeper

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/pkg/jwt"
)

const (
	tokenQueryParam = "token"
	authHeader      = "Authorization"
	bearerPrefix    = "Bearer "
)

// TokenValidator verifies a credential. *jwt.Manager implements it.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// Identity is what admission attaches to a connection.
type Identity struct {
	UserID string
}

// Gatekeeper authenticates connection attempts before they are upgraded.
type Gatekeeper struct {
	validator TokenValidator
}

func New(validator TokenValidator) *Gatekeeper {
	return &Gatekeeper{validator: validator}
}

// Authenticate reads the credential from the token query parameter or a
// bearer Authorization header. It returns an error wrapping
// domain.ErrAuthMissing or domain.ErrAuthInvalid.
func (g *Gatekeeper) Authenticate(r *http.Request) (Identity, error) {
	token := credential(r)
	if token == "" {
		return Identity{}, domain.ErrAuthMissing
	}

	claims, err := g.validator.Validate(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthInvalid, err)
	}

	userID, err := conversation.CanonicalUserID(claims.Identity())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: user id %q is not numeric", domain.ErrAuthInvalid, claims.Identity())
	}
	return Identity{UserID: userID}, nil
}

func credential(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get(tokenQueryParam)); t != "" {
		return t
	}
	h := r.Header.Get(authHeader)
	if strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return ""
}
