package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var turkishUpper = cases.Upper(language.Turkish)

// UpperTurkish uppercases s with Turkish casing rules, so dotted and dotless
// i map correctly (i -> İ, ı -> I).
func UpperTurkish(s string) string {
	return turkishUpper.String(s)
}

// SKUFragment derives the short code a variant option contributes to a
// generated SKU: the option name stripped of every non-letter, non-digit
// rune, truncated to n runes, Turkish-uppercased.
func SKUFragment(name string, n int) string {
	compact := make([]rune, 0, len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			compact = append(compact, r)
		}
	}
	if len(compact) > n {
		compact = compact[:n]
	}
	return UpperTurkish(string(compact))
}

// SKURoot derives the product part of a generated SKU from the product ID:
// the last n characters, uppercased.
func SKURoot(productID string, n int) string {
	if len(productID) > n {
		productID = productID[len(productID)-n:]
	}
	return strings.ToUpper(productID)
}

// BuildSKU joins the product root and option fragments with dashes.
func BuildSKU(root string, fragments ...string) string {
	parts := make([]string, 0, len(fragments)+1)
	parts = append(parts, root)
	for _, fragment := range fragments {
		if fragment == "" {
			continue
		}
		parts = append(parts, fragment)
	}
	return strings.Join(parts, "-")
}
