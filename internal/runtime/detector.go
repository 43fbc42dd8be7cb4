package runtime

import (
	"strings"

	"golang.org/x/net/html"
)

// Detector guesses the runtime of a document from the attributes of its
// <html> start tag.
type Detector struct {
	registry *Registry
}

// NewDetector creates a detector over the registry's runtimes.
func NewDetector(registry *Registry) *Detector {
	return &Detector{registry: registry}
}

// Detect returns the first runtime, in registration order, that owns one of
// the <html> attributes. Documents without a recognizable marker fall back to
// the first registered runtime.
func (d *Detector) Detect(source string) *Runtime {
	runtimes := d.registry.Values()
	if len(runtimes) == 0 {
		return nil
	}

	attrs := htmlAttributes(source)
	for _, rt := range runtimes {
		for _, attr := range attrs {
			if rt.HasMarker(attr) {
				return rt
			}
		}
	}
	return runtimes[0]
}

// htmlAttributes returns the attribute names of the first <html> start tag.
// Scanning stops at <head> or <body> since <html> can no longer follow.
func htmlAttributes(source string) []string {
	z := html.NewTokenizer(strings.NewReader(source))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "html":
				var attrs []string
				for hasAttr {
					var key []byte
					key, _, hasAttr = z.TagAttr()
					attrs = append(attrs, string(key))
				}
				return attrs
			case "head", "body":
				return nil
			}
		}
	}
}
