package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	HeaderSignature = "X-Media-Signature"
	HeaderDate      = "X-Media-Date"
	HeaderNonce     = "X-Media-Nonce"
)

func ComputeBodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func ComputeSignature(privateKey string, account string, method string, path string, query string, bodyHash string, date string, nonce string) string {
	data := strings.Join([]string{
		account,
		strings.ToUpper(method),
		path,
		query,
		bodyHash,
		date,
		nonce,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func ValidateSignature(privateKey string, account string, signature string, method string, path string, query string, body []byte, date string, nonce string) bool {
	bodyHash := ComputeBodyHash(body)
	expected := ComputeSignature(privateKey, account, method, path, query, bodyHash, date, nonce)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func ExtractSignatureHeaders(c *gin.Context) (date string, nonce string, signature string, err error) {
	date = c.GetHeader(HeaderDate)
	nonce = c.GetHeader(HeaderNonce)
	signature = c.GetHeader(HeaderSignature)

	if date == "" || nonce == "" || signature == "" {
		return "", "", "", fmt.Errorf("missing signature headers")
	}
	return date, nonce, signature, nil
}

func CanonicalPath(r *http.Request) (string, string) {
	path := r.URL.Path
	query := r.URL.RawQuery
	return path, query
}

// SignRequest sets the signature headers on req the way a client would.
func SignRequest(req *http.Request, account, privateKey string, body []byte, at time.Time, nonce string) {
	date := at.UTC().Format(time.RFC3339)
	path, query := CanonicalPath(req)
	signature := ComputeSignature(privateKey, account, req.Method, path, query, ComputeBodyHash(body), date, nonce)

	req.Header.Set(HeaderDate, date)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, signature)
}
