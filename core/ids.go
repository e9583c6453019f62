package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dcbradley/netblast/utils"
)

// CredentialLength is the length of every worker credential handed out at registration
const CredentialLength = 20

// NewID generates a new ULID with the given prefix.
// The format is: prefix_ULID
// Example: core.NewID("wk") returns "wk_01G0EZ1XTM37C5X11SQTDNCTM1"
func NewID(prefix string) string {
	utils.AssertInvariant(prefix != "" && strings.TrimSpace(prefix) != "", "prefix cannot be empty")

	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)

	return strings.ToLower(strings.TrimSpace(prefix)) + "_" + id.String()
}

// IsValidULID checks if the given string is a valid ULID format with prefix.
func IsValidULID(id string) bool {
	prefix, ulidPart, ok := strings.Cut(id, "_")
	if !ok || prefix == "" || strings.Contains(ulidPart, "_") {
		return false
	}
	for _, r := range prefix {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	if len(ulidPart) != ulid.EncodedSize {
		return false
	}

	_, err := ulid.ParseStrict(ulidPart)
	return err == nil
}

// CredentialSource produces worker credentials.
// Tests swap in deterministic sources; production uses NewCredentialSource.
type CredentialSource interface {
	NewCredential() (string, error)
}

// CredentialSourceFunc adapts a plain function to CredentialSource
type CredentialSourceFunc func() (string, error)

func (f CredentialSourceFunc) NewCredential() (string, error) {
	return f()
}

type randomCredentialSource struct {
	reader io.Reader
}

// NewCredentialSource returns a CredentialSource backed by crypto/rand.
// Each credential is 20 lowercase hex characters (80 bits).
func NewCredentialSource() CredentialSource {
	return &randomCredentialSource{reader: rand.Reader}
}

func (s *randomCredentialSource) NewCredential() (string, error) {
	buf := make([]byte, CredentialLength/2)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate random credential: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
