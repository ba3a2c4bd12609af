package http

import "regexp"

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,50}$`)

// ValidSlug accepts the identifiers we embed in SQL-adjacent places and
// gateway paths: instance names and usernames.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
