package persona

import (
	"regexp"
	"strings"
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces     = regexp.MustCompile(`\s+`)
	slugDashes     = regexp.MustCompile(`-+`)
)

// UnnamedSlug is used when a name contains no slug-safe characters.
const UnnamedSlug = "unnamed"

// Slugify converts a persona name to a kebab-case, URL-safe identifier.
// It is pure and idempotent: Slugify(Slugify(n)) == Slugify(n).
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugDisallowed.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return UnnamedSlug
	}
	return slug
}
