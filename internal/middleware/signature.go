package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mediavault/internal/security"
)

type SignatureConfig struct {
	PrivateKeys map[string]string
	Window      time.Duration
	Nonces      security.NonceStore
	Now         func() time.Time
}

func NewReadCloser(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// Signature verifies the HMAC headers on write requests against the private
// key of the :account in the route. Reads pass through untouched.
func Signature(cfg SignatureConfig) gin.HandlerFunc {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		if !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		account := c.Param("account")
		privateKey, ok := cfg.PrivateKeys[account]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown_account"})
			return
		}

		date, nonce, signature, err := security.ExtractSignatureHeaders(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature_required"})
			return
		}

		requestTime, err := time.Parse(time.RFC3339, date)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_date"})
			return
		}

		current := now()
		if current.Sub(requestTime) > cfg.Window || requestTime.Sub(current) > cfg.Window {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "request_expired"})
			return
		}

		rawBody, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
		c.Request.Body = NewReadCloser(rawBody)

		path, query := security.CanonicalPath(c.Request)
		valid := security.ValidateSignature(
			privateKey,
			account,
			signature,
			c.Request.Method,
			path,
			query,
			rawBody,
			date,
			nonce,
		)
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}

		claimed, err := cfg.Nonces.Claim(c.Request.Context(), fmt.Sprintf("%s:%s", account, nonce), 2*cfg.Window)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "nonce_store_unavailable"})
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "replay_detected"})
			return
		}

		c.Next()
	}
}

// AccessToken requires a valid accessToken query parameter on reads.
func AccessToken(privateKeys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isWrite(c.Request.Method) {
			c.Next()
			return
		}

		privateKey, ok := privateKeys[c.Param("account")]
		if !ok || !security.ValidAccessToken(privateKey, c.Request.URL) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_access_token"})
			return
		}
		c.Next()
	}
}
