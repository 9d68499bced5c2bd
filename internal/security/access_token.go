package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

const AccessTokenParam = "accessToken"

// AccessToken signs a read URL. The token covers the path and every query
// parameter except accessToken itself, in sorted order.
func AccessToken(privateKey string, u *url.URL) string {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write([]byte(canonicalURL(u)))
	return hex.EncodeToString(mac.Sum(nil))
}

func ValidAccessToken(privateKey string, u *url.URL) bool {
	token := u.Query().Get(AccessTokenParam)
	if token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(AccessToken(privateKey, u)))
}

func canonicalURL(u *url.URL) string {
	q := u.Query()
	q.Del(AccessTokenParam)
	if encoded := q.Encode(); encoded != "" {
		return u.Path + "?" + encoded
	}
	return u.Path
}
