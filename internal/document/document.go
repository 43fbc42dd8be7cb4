// Package document derives metadata from a playground source: the document
// title and the content-security-policy hashes of inline amp-script code.
package document

import (
	"crypto/sha512"
	"encoding/base64"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultTitle is shown when the source has no <title>.
const DefaultTitle = "AMP Playground"

// HashPrefix marks the algorithm of every csp hash.
const HashPrefix = "sha384-"

// Title returns the whitespace-normalized text of the first <title> element,
// or "" if there is none.
func Title(source string) string {
	z := html.NewTokenizer(strings.NewReader(source))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if z.Token().DataAtom != atom.Title {
				continue
			}
			// The tokenizer treats <title> content as raw text.
			if z.Next() != html.TextToken {
				return ""
			}
			return strings.Join(strings.Fields(string(z.Text())), " ")
		}
	}
}

// CSPHashes returns the hashes of every inline amp-script script, in
// document order without duplicates. An inline amp-script script is a
// <script type="text/plain" target="amp-script"> element.
func CSPHashes(source string) []string {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil
	}

	var hashes []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script && isInlineAMPScript(n) {
			h := Hash(textContent(n))
			if !slices.Contains(hashes, h) {
				hashes = append(hashes, h)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hashes
}

// Hash returns the amp-script csp hash of script: sha384 in unpadded
// base64url.
func Hash(script string) string {
	sum := sha512.Sum384([]byte(script))
	return HashPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

func isInlineAMPScript(n *html.Node) bool {
	var typ, target string
	for _, a := range n.Attr {
		switch a.Key {
		case "type":
			typ = strings.ToLower(strings.TrimSpace(a.Val))
		case "target":
			target = strings.ToLower(strings.TrimSpace(a.Val))
		case "src":
			return false
		}
	}
	return typ == "text/plain" && target == "amp-script"
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// TitleUpdater keeps the host's window title in sync with the source.
type TitleUpdater struct {
	mu     sync.Mutex
	suffix string
	title  string
}

// NewTitleUpdater creates an updater appending suffix to document titles.
func NewTitleUpdater(suffix string) *TitleUpdater {
	return &TitleUpdater{suffix: suffix, title: DefaultTitle}
}

// Update implements the orchestrator's TitleUpdater.
func (u *TitleUpdater) Update(source string) string {
	title := Title(source)
	switch {
	case title == "":
		title = DefaultTitle
	case u.suffix != "":
		title += " " + u.suffix
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.title = title
	return title
}

// Title returns the last computed title.
func (u *TitleUpdater) Title() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.title
}

// CSPCalculator keeps the csp hashes of the source.
type CSPCalculator struct {
	mu     sync.Mutex
	hashes []string
}

// NewCSPCalculator creates an empty calculator.
func NewCSPCalculator() *CSPCalculator {
	return &CSPCalculator{}
}

// Update implements the orchestrator's CSPCalculator.
func (c *CSPCalculator) Update(source string) []string {
	hashes := CSPHashes(source)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes = hashes
	return slices.Clone(hashes)
}

// Hashes returns the last computed hashes.
func (c *CSPCalculator) Hashes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.hashes)
}

// Meta renders the hashes as the amp-script-src meta tag, or "" when there
// are none.
func Meta(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	return `<meta name="amp-script-src" content="` + strings.Join(hashes, " ") + `">`
}
