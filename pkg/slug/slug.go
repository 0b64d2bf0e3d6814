package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonHandleRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into a base letter plus a combining mark.
var foldReplacer = strings.NewReplacer(
	"đ", "d", "Đ", "d",
	"ı", "i", "ł", "l", "Ł", "l",
	"ø", "o", "Ø", "o",
	"ß", "ss",
)

// Handle converts a collection or product title into the handle the
// storefront generates for it. Diacritics are folded to ASCII.
//
// Examples:
//   - "Nhẫn Vàng" → "nhan-vang"
//   - "Đồng hồ nữ" → "dong-ho-nu"
//   - "summer-sale" → "summer-sale"
func Handle(title string) string {
	s := foldReplacer.Replace(strings.TrimSpace(title))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = strings.ToLower(s)
	s = nonHandleRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Handles normalizes every entry of list and drops empty results.
func Handles(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if h := Handle(v); h != "" {
			out = append(out, h)
		}
	}
	return out
}
