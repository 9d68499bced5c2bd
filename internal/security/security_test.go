package security

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"a":1}`)
	req := httptest.NewRequest("POST", "/api/v1/accounts/u1/images/abc/meta?x=1", nil)
	SignRequest(req, "u1", "secret", body, time.Unix(1700000000, 0), "n1")

	path, query := CanonicalPath(req)
	sig := req.Header.Get(HeaderSignature)
	date := req.Header.Get(HeaderDate)

	assert.Equal(t, "2023-11-14T22:13:20Z", date)
	assert.True(t, ValidateSignature("secret", "u1", sig, "POST", path, query, body, date, "n1"))
	assert.False(t, ValidateSignature("other", "u1", sig, "POST", path, query, body, date, "n1"))
	assert.False(t, ValidateSignature("secret", "u2", sig, "POST", path, query, body, date, "n1"))
	assert.False(t, ValidateSignature("secret", "u1", sig, "POST", path, query, []byte(`{"a":2}`), date, "n1"))
	assert.False(t, ValidateSignature("secret", "u1", sig, "DELETE", path, query, body, date, "n1"))
}

func TestAccessToken(t *testing.T) {
	u, err := url.Parse("/api/v1/accounts/u1/images/abc?t[]=flipVertically&t[]=crop:width=1,height=1")
	require.NoError(t, err)

	token := AccessToken("secret", u)
	q := u.Query()
	q.Set(AccessTokenParam, token)
	u.RawQuery = q.Encode()

	assert.True(t, ValidAccessToken("secret", u))
	assert.False(t, ValidAccessToken("other", u))

	tampered := *u
	q.Add("t[]", "desaturate")
	tampered.RawQuery = q.Encode()
	assert.False(t, ValidAccessToken("secret", &tampered))

	bare, _ := url.Parse("/api/v1/accounts/u1/images/abc")
	assert.False(t, ValidAccessToken("secret", bare))
}

func TestMemoryNonces(t *testing.T) {
	n := NewMemoryNonces()
	now := time.Unix(1000, 0)
	n.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := n.Claim(ctx, "u1:n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = n.Claim(ctx, "u1:n1", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = n.Claim(ctx, "u1:n1", time.Minute)
	assert.True(t, ok)
}
