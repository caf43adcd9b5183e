package shop

import "strings"

// StoreSlug derives the storefront URL path from a shop name: lowercase,
// non-alphanumerics stripped, runs of spaces become single hyphens.
// "KH Shop!" -> "kh-shop".
func StoreSlug(shopName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(shopName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}
