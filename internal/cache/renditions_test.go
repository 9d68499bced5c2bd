package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenditionKey(t *testing.T) {
	a := RenditionKey("u1", "abc.png", []string{"crop:width=10,height=10", "flipVertically"}, "")
	b := RenditionKey("u1", "abc.png", []string{"flipVertically", "crop:width=10,height=10"}, "")
	c := RenditionKey("u1", "abc.png", []string{"crop:width=10,height=10", "flipVertically"}, "jpg")

	assert.True(t, strings.HasPrefix(a, "rendition:u1:abc.png:"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, RenditionKey("u1", "abc.png", []string{"crop:width=10,height=10", "flipVertically"}, ""))
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `u\*1\?\[x\]`, escapePattern("u*1?[x]"))
}
