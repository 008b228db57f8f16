package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/pkg/api"
)

type keySet [][sha256.Size]byte

func newKeySet(keys []string) keySet {
	set := make(keySet, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			set = append(set, sha256.Sum256([]byte(k)))
		}
	}
	return set
}

// contains compares digests in constant time.
func (s keySet) contains(token string) bool {
	sum := sha256.Sum256([]byte(token))
	found := 0
	for _, k := range s {
		found |= subtle.ConstantTimeCompare(k[:], sum[:])
	}
	return found == 1
}

// KeyID is the short digest of a token used in logs and audit events.
func KeyID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "key_" + hex.EncodeToString(sum[:6])
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func attachClient(c *gin.Context, keyID string) {
	ctx := gateway.WithClient(c.Request.Context(), gateway.Client{
		KeyID:     keyID,
		RequestID: GetRequestID(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.Request = c.Request.WithContext(ctx)
}

// Auth checks for a valid Bearer token. With no keys configured every caller
// is let through as anonymous.
func Auth(keys []string) gin.HandlerFunc {
	set := newKeySet(keys)

	return func(c *gin.Context) {
		if len(set) == 0 {
			attachClient(c, "anonymous")
			c.Next()
			return
		}

		token, ok := bearer(c)
		if !ok {
			_ = c.Error(api.UnauthorizedError("Missing or malformed Authorization header"))
			c.Abort()
			return
		}
		if !set.contains(token) {
			_ = c.Error(api.UnauthorizedError("Invalid API key"))
			c.Abort()
			return
		}

		attachClient(c, KeyID(token))
		c.Next()
	}
}

// AdminAuth only accepts admin keys. Without admin keys the routes are closed.
func AdminAuth(keys []string) gin.HandlerFunc {
	set := newKeySet(keys)

	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			_ = c.Error(api.UnauthorizedError("Missing or malformed Authorization header"))
			c.Abort()
			return
		}
		if !set.contains(token) {
			_ = c.Error(api.ForbiddenError("Admin key required"))
			c.Abort()
			return
		}

		attachClient(c, KeyID(token))
		c.Next()
	}
}
