package zones

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName produces the uniqueness key for a zone name: trimmed,
// inner whitespace collapsed, NFC normalized and case folded, so that
// "Depósito Norte" and "DEPÓSITO  norte" collide.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	name = norm.NFC.String(name)
	return cases.Fold().String(name)
}
