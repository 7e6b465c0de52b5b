package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/tinithink/internal/domain"
)

// Normalize flattens a card into the text its hash is computed over.
// Each field is lowercased, trimmed and has its line endings normalized;
// the path contributes one line per segment, prefixed with its level.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	parts := make([]string, 0, 2+len(card.Path))
	parts = append(parts, normalizePart(card.Question), normalizePart(card.Answer))
	for _, seg := range card.Path {
		parts = append(parts, seg.Level.String()+":"+normalizePart(seg.Name))
	}

	// Newline separation keeps "ab"+"c" and "a"+"bc" apart.
	return strings.Join(parts, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}
