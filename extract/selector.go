package extract

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// clickable matches the elements a clickstream may target.
var clickable = cascadia.MustCompile(
	`a[href], button, input[type=button], input[type=submit], [role=button], [onclick]`,
)

// ValidSelector reports whether sel parses as a CSS selector.
func ValidSelector(sel string) bool {
	if strings.TrimSpace(sel) == "" {
		return false
	}
	_, err := cascadia.Compile(sel)
	return err == nil
}

// CountClickable returns the number of clickable elements in rawHTML. A
// page without any is treated as down since no clickstream can start.
func CountClickable(rawHTML string) int {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return 0
	}
	return len(cascadia.QueryAll(doc, clickable))
}
