package listings

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
)

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

const (
	fallbackSlug = "listing"
	suffixBytes  = 3
	// Keeps slug + "-" + suffix inside listings.public_id varchar(96).
	maxSlugLen = 80
)

// IdentityGenerator mints public listing identifiers of the form
// <crop>-<region>-<6 hex>. Uniqueness rests on the random suffix and the
// unique index on listings.public_id; collisions are not retried.
type IdentityGenerator struct {
	Rand io.Reader
}

func (g IdentityGenerator) New(cropType, region string) (string, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	var b [suffixBytes]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	return Slug(cropType, region) + "-" + hex.EncodeToString(b[:]), nil
}

// Slug lowercases "crop-region", collapses every run of characters outside
// [a-z0-9] into one hyphen and trims hyphens from both ends. Long slugs are
// cut to maxSlugLen.
func Slug(cropType, region string) string {
	base := strings.ToLower(strings.TrimSpace(cropType + "-" + region))
	base = strings.Trim(nonSlugRe.ReplaceAllString(base, "-"), "-")
	if len(base) > maxSlugLen {
		base = strings.TrimRight(base[:maxSlugLen], "-")
	}
	if base == "" {
		return fallbackSlug
	}
	return base
}
