package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesRoundTrip(t *testing.T) {
	e := Event{Type: ImageDeleted, Account: "u1", Identifier: "abc.png", At: time.Unix(1700000000, 0).UTC()}

	// go-redis hands stream fields back as strings.
	values := map[string]any{}
	for k, v := range e.Values() {
		values[k] = v.(string)
	}

	got, err := FromValues(values)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestFromValuesErrors(t *testing.T) {
	_, err := FromValues(map[string]any{"account": "u1"})
	assert.Error(t, err)

	_, err = FromValues(map[string]any{"type": "cleanup", "at": "yesterday"})
	assert.Error(t, err)

	got, err := FromValues(map[string]any{"type": "cleanup"})
	require.NoError(t, err)
	assert.Equal(t, Cleanup, got.Type)
	assert.True(t, got.At.IsZero())
}
