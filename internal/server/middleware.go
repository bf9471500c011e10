package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/fanpulse/fanpulse/internal/usercontext"
)

// Identity headers supplied by the upstream auth layer. The gateway
// terminates sessions; this service only consumes its verdict.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserAdmin = "X-User-Admin"
	HeaderIdentity  = "X-Identity-Signature"

	contextUserIDKey = "user_id"
)

// IdentityRequired resolves the acting user from the identity headers
// and stores it on the request context. With an identity secret
// configured, the signature header must be a valid HMAC of the user id
// so a client on the open network cannot spoof the gateway.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if secret := s.cfg.IdentitySecret; secret != "" {
			if !verifyIdentitySignature(secret, raw, c.GetHeader(HeaderIdentity)) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
		}

		ctx := usercontext.WithUserID(c.Request.Context(), userID.Int64())
		if isTruthy(c.GetHeader(HeaderUserAdmin)) {
			ctx = usercontext.WithAdmin(ctx, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, userID.String())

		c.Next()
	}
}

// AdminRequired gates operator endpoints. Runs after IdentityRequired.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !usercontext.IsAdmin(c.Request.Context()) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func verifyIdentitySignature(secret, userID, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
