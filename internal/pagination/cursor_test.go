package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor(t *testing.T) {
	timestamp := time.Date(2026, 3, 14, 12, 30, 45, 123456789, time.UTC)

	t.Run("round trip preserves id and timestamp", func(t *testing.T) {
		encoded := EncodeCursor("doc-42", timestamp)
		require.NotEmpty(t, encoded)

		cursor, err := DecodeCursor(encoded)
		require.NoError(t, err)
		assert.Equal(t, "doc-42", cursor.LastID)
		assert.True(t, cursor.Timestamp.Equal(timestamp))
	})

	t.Run("empty id encodes to empty cursor", func(t *testing.T) {
		assert.Empty(t, EncodeCursor("", timestamp))
	})

	t.Run("empty cursor decodes to nil", func(t *testing.T) {
		cursor, err := DecodeCursor("")
		require.NoError(t, err)
		assert.Nil(t, cursor)
	})

}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"no separator", "ZG9jLTQy"},                  // "doc-42"
		{"bad timestamp", "ZG9jLTQyfG5vdC1hLXRpbWU="}, // "doc-42|not-a-time"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.cursor)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"zero uses default", 0, DefaultLimit},
		{"negative uses default", -5, DefaultLimit},
		{"in range passes through", 50, 50},
		{"above max clamps", 500, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClampLimit(tt.input))
		})
	}
}
