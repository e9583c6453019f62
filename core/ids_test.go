package core

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		expected string
	}{
		{name: "worker prefix", prefix: "wk", expected: "wk"},
		{name: "uppercase prefix gets lowercased", prefix: "CN", expected: "cn"},
		{name: "prefix with spaces gets trimmed", prefix: "  fl  ", expected: "fl"},
	}

	ulidPattern := regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewID(tt.prefix)

			prefix, ulidPart, ok := strings.Cut(id, "_")
			require.True(t, ok)
			assert.Equal(t, tt.expected, prefix)
			assert.True(t, ulidPattern.MatchString(ulidPart), "ULID part should be base32: %s", ulidPart)
			assert.True(t, IsValidULID(id))
		})
	}
}

func TestNewID_EmptyPrefixPanics(t *testing.T) {
	for _, prefix := range []string{"", "   ", "\t"} {
		assert.Panics(t, func() { NewID(prefix) })
	}
}

func TestNewID_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID("wk")
		assert.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}
}

func TestIsValidULID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{name: "generated id", id: NewID("wk"), valid: true},
		{name: "empty", id: "", valid: false},
		{name: "no prefix", id: "01G0EZ1XTM37C5X11SQTDNCTM1", valid: false},
		{name: "short ulid", id: "wk_01G0EZ1XTM", valid: false},
		{name: "uppercase prefix", id: "WK_01G0EZ1XTM37C5X11SQTDNCTM1", valid: false},
		{name: "invalid characters", id: "wk_01G0EZ1XTM37C5X11SQTDNCTMU", valid: false},
		{name: "numeric legacy id", id: "42", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidULID(tt.id))
		})
	}
}

func TestCredentialSource(t *testing.T) {
	t.Run("produces 20 hex characters", func(t *testing.T) {
		source := NewCredentialSource()
		credential, err := source.NewCredential()
		require.NoError(t, err)
		assert.Len(t, credential, CredentialLength)
		assert.Regexp(t, `^[0-9a-f]{20}$`, credential)
	})

	t.Run("two credentials differ", func(t *testing.T) {
		source := NewCredentialSource()
		first, err := source.NewCredential()
		require.NoError(t, err)
		second, err := source.NewCredential()
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("deterministic reader", func(t *testing.T) {
		source := &randomCredentialSource{reader: bytes.NewReader(bytes.Repeat([]byte{0xab}, 10))}
		credential, err := source.NewCredential()
		require.NoError(t, err)
		assert.Equal(t, "abababababababababab", credential)
	})

	t.Run("short reader fails", func(t *testing.T) {
		source := &randomCredentialSource{reader: bytes.NewReader([]byte{0x01})}
		_, err := source.NewCredential()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to generate random credential")
	})

	t.Run("func adapter", func(t *testing.T) {
		source := CredentialSourceFunc(func() (string, error) { return "", errors.New("boom") })
		_, err := source.NewCredential()
		assert.EqualError(t, err, "boom")
	})
}

func TestErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrNotFound)
	assert.True(t, IsNotFoundError(wrapped))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(errors.New("something else")))

	vErr := NewValidationError("hostname", "is required")
	assert.EqualError(t, vErr, "hostname is required")
	assert.True(t, IsValidationError(vErr))
	assert.False(t, IsValidationError(ErrNotFound))
}
