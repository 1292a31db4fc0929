package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"davos_stays/models"
	"davos_stays/normalize"
)

var (
	streetReplacements = []struct{ full, abbrev string }{
		{"strasse", "str"},
		{"straße", "str"},
		{"promenade", "prom"},
		{"platz", "pl"},
		{"gasse", "g"},
		{"weg", "w"},
		{"street", "st"},
		{"road", "rd"},
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint identifies a physical listing independent of its generated
// name, so two spreadsheet rows describing the same flat collide.
func Fingerprint(rec *models.PropertyRecord) string {
	input := fmt.Sprintf("%s|%d|%s",
		NormalizeAddress(rec.Address),
		rec.Rooms,
		rec.PropertyType,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress folds case, diacritics, punctuation and common street
// suffixes.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	for _, r := range streetReplacements {
		addr = strings.ReplaceAll(addr, r.full, r.abbrev)
	}
	addr = strings.ReplaceAll(normalize.Slugify(addr), "-", " ")
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}
