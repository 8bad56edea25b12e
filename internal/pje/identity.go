package pje

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// NormalizeCaseNumber rewrites a CNJ case number into its canonical
// NNNNNNN-DD.AAAA.J.TR.OOOO form. Inputs that do not carry exactly twenty
// digits are returned unchanged, so free-text values survive round trips.
func NormalizeCaseNumber(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 20 {
		return raw
	}
	return fmt.Sprintf("%s-%s.%s.%s.%s.%s", d[0:7], d[7:9], d[9:13], d[13:14], d[14:16], d[16:20])
}

// IdentityKey builds the canonical dedup key for a publication. Two records
// describing the same act produce the same key even when the portal formats
// the case number differently between visits.
func IdentityKey(caseNumber string, publishedAt time.Time, court string) string {
	return NormalizeCaseNumber(caseNumber) + "|" + publishedAt.Format(time.RFC3339) + "|" + court
}

// ComputeIdentityHash digests the identity key with the given hasher.
func ComputeIdentityHash(h Hasher, caseNumber string, publishedAt time.Time, court string) (string, error) {
	digest, err := h.Hash([]byte(IdentityKey(caseNumber, publishedAt, court)))
	if err != nil {
		return "", fmt.Errorf("hashing identity key: %w", err)
	}
	return digest, nil
}
