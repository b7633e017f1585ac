// Package extract locates artifact URLs inside provider response bodies.
// Providers answer in more than one JSON shape depending on model and API
// mode, so each known shape gets a finder and the finders run in priority
// order.
package extract

import (
	"fmt"
	"strings"
)

// Finder probes one response shape. Find returns "" when the shape does not
// match or carries no artifact.
type Finder struct {
	Name string
	Find func(body []byte) string
}

// FirstURL applies finders in order and returns the first non-empty artifact
// URL together with the matching finder's name. When every finder comes up
// empty the error lists the shapes tried.
func FirstURL(body []byte, finders []Finder) (string, string, error) {
	names := make([]string, 0, len(finders))
	for _, f := range finders {
		names = append(names, f.Name)
		if url := strings.TrimSpace(f.Find(body)); url != "" {
			return url, f.Name, nil
		}
	}
	return "", "", fmt.Errorf("extract: no artifact url in response (tried %s)", strings.Join(names, ", "))
}
