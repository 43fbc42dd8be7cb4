// Package autoimport adds the extension scripts a document is missing. It
// reads the findings of each applied validation result and inserts one
// <script async custom-element=...> per missing extension before </head>.
package autoimport

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/Iron-Ham/playground/internal/logging"
	"github.com/Iron-Ham/playground/internal/validator"
)

// DefaultCDNBase is where extension scripts are loaded from.
const DefaultCDNBase = "https://cdn.ampproject.org/v0"

// Validation codes that name a missing extension.
const (
	CodeMissingExtension = "MISSING_REQUIRED_EXTENSION"
	CodeTagRequiredBy    = "TAG_REQUIRED_BY_MISSING"
	CodeAttrRequired     = "ATTR_REQUIRED_BUT_MISSING"
)

var extensionName = regexp.MustCompile(`\bamp-[a-z0-9]+(?:-[a-z0-9]+)*\b`)

// versions lists extensions whose current version is not 0.1.
var versions = map[string]string{
	"amp-mustache": "0.2",
}

// builtins are part of the runtime and never imported.
var builtins = []string{"amp-img", "amp-pixel", "amp-layout"}

// templateExtensions are loaded with custom-template instead of custom-element.
var templateExtensions = []string{"amp-mustache"}

// Editor is the part of the editing surface the importer writes through.
type Editor interface {
	Source() string
	SetSource(source string)
}

// Importer implements the orchestrator's AutoImporter.
type Importer struct {
	editor  Editor
	cdnBase string
	logger  *logging.Logger
}

// New creates an Importer writing into editor. An empty cdnBase uses
// DefaultCDNBase.
func New(editor Editor, cdnBase string, logger *logging.Logger) *Importer {
	if cdnBase == "" {
		cdnBase = DefaultCDNBase
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Importer{
		editor:  editor,
		cdnBase: strings.TrimSuffix(cdnBase, "/"),
		logger:  logger.WithComponent("autoimport"),
	}
}

// Update inserts the scripts for extensions named by result. The editor is
// only written when something was added.
func (i *Importer) Update(result validator.Result) {
	missing := MissingExtensions(result)
	if len(missing) == 0 {
		return
	}

	source := i.editor.Source()
	updated, added := i.Insert(source, missing)
	if len(added) == 0 {
		return
	}
	i.logger.Info("imported extensions", "extensions", strings.Join(added, ","))
	i.editor.SetSource(updated)
}

// MissingExtensions returns the extension names referenced by the findings
// of result, in order of first appearance.
func MissingExtensions(result validator.Result) []string {
	var names []string
	add := func(name string) {
		if name != "" && !slices.Contains(builtins, name) && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, e := range result.Errors {
		switch e.Code {
		case CodeMissingExtension:
			// params: [tag, extension]
			if len(e.Params) > 1 {
				add(extensionIn(e.Params[1]))
			} else if len(e.Params) == 1 {
				add(extensionIn(e.Params[0]))
			}
		case CodeTagRequiredBy:
			// params: [missing tag, required by]
			if len(e.Params) > 0 && strings.Contains(e.Params[0], "extension") {
				add(extensionIn(e.Params[0]))
			}
		case CodeAttrRequired:
			for _, p := range e.Params {
				if strings.HasPrefix(p, "amp-") {
					add(extensionIn(p))
				}
			}
		}
	}
	return names
}

func extensionIn(s string) string {
	return extensionName.FindString(strings.ToLower(s))
}

// Insert adds script tags for extensions not already loaded by source. It
// returns the new source and the extensions actually added. A source without
// a </head> or <body> is returned unchanged.
func (i *Importer) Insert(source string, extensions []string) (string, []string) {
	offset, ok := insertionPoint(source)
	if !ok {
		return source, nil
	}

	loaded := loadedExtensions(source)
	var added []string
	for _, ext := range extensions {
		if !slices.Contains(loaded, ext) && !slices.Contains(added, ext) {
			added = append(added, ext)
		}
	}
	if len(added) == 0 {
		return source, nil
	}

	lineStart := strings.LastIndexByte(source[:offset], '\n') + 1
	prefix := source[lineStart:offset]
	var b strings.Builder
	if strings.TrimSpace(prefix) == "" {
		// </head> starts its own line: indent the scripts one level deeper.
		b.WriteString(source[:lineStart])
		for _, ext := range added {
			b.WriteString(prefix + "  " + i.ScriptTag(ext) + "\n")
		}
		b.WriteString(source[lineStart:])
	} else {
		b.WriteString(source[:offset])
		for _, ext := range added {
			b.WriteString(i.ScriptTag(ext))
		}
		b.WriteString(source[offset:])
	}
	return b.String(), added
}

// ScriptTag returns the script element loading ext.
func (i *Importer) ScriptTag(ext string) string {
	version := versions[ext]
	if version == "" {
		version = "0.1"
	}
	attr := "custom-element"
	if slices.Contains(templateExtensions, ext) {
		attr = "custom-template"
	}
	return fmt.Sprintf(`<script async %s="%s" src="%s/%s-%s.js"></script>`, attr, ext, i.cdnBase, ext, version)
}

// insertionPoint returns the byte offset of </head>, or of <body> when the
// head is not closed explicitly.
func insertionPoint(source string) (int, bool) {
	z := html.NewTokenizer(strings.NewReader(source))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return 0, false
		}
		raw := len(z.Raw())
		name, _ := z.TagName()
		switch {
		case tt == html.EndTagToken && string(name) == "head":
			return offset, true
		case tt == html.StartTagToken && string(name) == "body":
			return offset, true
		}
		offset += raw
	}
}

// loadedExtensions returns the extensions named by custom-element or
// custom-template attributes of script tags.
func loadedExtensions(source string) []string {
	var names []string
	z := html.NewTokenizer(strings.NewReader(source))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return names
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "script" {
			continue
		}
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if k := string(key); k == "custom-element" || k == "custom-template" {
				names = append(names, strings.ToLower(string(val)))
			}
		}
	}
}
