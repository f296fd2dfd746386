package timezone

import "strings"

// Source yields a candidate zone name, or "" when it has no opinion.
type Source func() string

// Static returns a Source that always yields name.
func Static(name string) Source {
	return func() string { return name }
}

// First evaluates sources in order and returns the first non-empty zone name.
func First(sources ...Source) string {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if name := strings.TrimSpace(src()); name != "" {
			return name
		}
	}
	return ""
}
