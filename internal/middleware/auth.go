package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/barber-api/pkg/errors"
	"github.com/jwalitptl/barber-api/pkg/security"
)

const DefaultAdminHeader = "X-Admin-Secret"

var errBadAdminSecret = errors.New("missing or invalid admin secret")

type AdminGateConfig struct {
	Header string
	// Secret is compared as-is. SecretHash, a bcrypt hash, wins when both are set.
	Secret     string
	SecretHash string
}

// AdminGate lets a request through only when it carries the shared admin secret.
// With nothing configured every request is rejected.
type AdminGate struct {
	header string
	digest []byte
	hash   string
	hasher security.SecretHasher
}

func NewAdminGate(cfg AdminGateConfig) *AdminGate {
	g := &AdminGate{
		header: cfg.Header,
		hasher: security.NewBcryptHasher(0),
	}
	if g.header == "" {
		g.header = DefaultAdminHeader
	}
	switch {
	case cfg.SecretHash != "":
		g.hash = cfg.SecretHash
	case cfg.Secret != "":
		g.digest = security.Digest(cfg.Secret)
	}
	return g
}

// Require aborts with 401 before any handler runs when the header does not match.
func (g *AdminGate) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.allowed(c.GetHeader(g.header)) {
			AbortWithError(c, apperrors.Unauthorized(errBadAdminSecret))
			return
		}
		c.Next()
	}
}

// Configured reports whether any secret was set.
func (g *AdminGate) Configured() bool {
	return g.hash != "" || g.digest != nil
}

func (g *AdminGate) allowed(provided string) bool {
	if provided == "" {
		return false
	}
	if g.hash != "" {
		return g.hasher.Compare(g.hash, provided) == nil
	}
	return security.EqualDigest(g.digest, provided)
}
