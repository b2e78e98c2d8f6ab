package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainPolicy = bluemonday.StrictPolicy()

// CleanText strips all markup from free-text input such as notes and reasons and trims it.
func CleanText(input string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(input)))
}
