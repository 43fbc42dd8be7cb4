// Package runtime holds the set of known runtime profiles, the currently
// active one, and the heuristic that picks a runtime for a freshly loaded
// document.
//
// A runtime bundles the default template shown for a new document with the
// validation profile used to check it. The set is fixed once the registry is
// initialized; only the active pointer moves.
package runtime

import (
	"slices"

	"github.com/Iron-Ham/playground/internal/validator"
)

// Built-in runtime ids.
const (
	IDWebsites = "amphtml"
	IDEmail    = "amp4email"
	IDAds      = "amp4ads"
)

// Runtime is a named configuration bundle selecting default content and
// validation rules for a category of document.
type Runtime struct {
	ID       string
	Name     string
	Template string
	Profile  validator.Profile
	// Markers are <html> attributes that identify documents for this runtime.
	Markers []string
}

// HasMarker reports whether attr identifies this runtime.
func (r *Runtime) HasMarker(attr string) bool {
	return slices.Contains(r.Markers, attr)
}

// Defaults returns the built-in runtimes in their registration order.
func Defaults() []Runtime {
	return []Runtime{
		{
			ID:       IDWebsites,
			Name:     "AMP Websites",
			Template: websitesTemplate,
			Profile:  validator.ProfileAMP,
			Markers:  []string{"⚡", "amp"},
		},
		{
			ID:       IDEmail,
			Name:     "AMP for Email",
			Template: emailTemplate,
			Profile:  validator.ProfileAMP4Email,
			Markers:  []string{"⚡4email", "amp4email"},
		},
		{
			ID:       IDAds,
			Name:     "AMP for Ads",
			Template: adsTemplate,
			Profile:  validator.ProfileAMP4Ads,
			Markers:  []string{"⚡4ads", "amp4ads"},
		},
	}
}

const websitesTemplate = `<!doctype html>
<html ⚡>
<head>
  <meta charset="utf-8">
  <title>My AMP Page</title>
  <link rel="canonical" href="self.html" />
  <meta name="viewport" content="width=device-width">
  <script async src="https://cdn.ampproject.org/v0.js"></script>
  <style amp-boilerplate>body{-webkit-animation:-amp-start 8s steps(1,end) 0s 1 normal both;-moz-animation:-amp-start 8s steps(1,end) 0s 1 normal both;-ms-animation:-amp-start 8s steps(1,end) 0s 1 normal both;animation:-amp-start 8s steps(1,end) 0s 1 normal both}@-webkit-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@-moz-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@-ms-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@-o-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}</style><noscript><style amp-boilerplate>body{-webkit-animation:none;-moz-animation:none;-ms-animation:none;animation:none}</style></noscript>
</head>
<body>
  Hello, AMP world.
</body>
</html>
`

const emailTemplate = `<!doctype html>
<html ⚡4email data-css-strict>
<head>
  <meta charset="utf-8">
  <script async src="https://cdn.ampproject.org/v0.js"></script>
  <style amp4email-boilerplate>body{visibility:hidden}</style>
</head>
<body>
  Hello, AMP4EMAIL world.
</body>
</html>
`

const adsTemplate = `<!doctype html>
<html ⚡4ads>
<head>
  <meta charset="utf-8">
  <title>My AMPHTML ad</title>
  <meta name="viewport" content="width=device-width,minimum-scale=1,initial-scale=1">
  <script async src="https://cdn.ampproject.org/amp4ads-v0.js"></script>
  <style amp4ads-boilerplate>body{visibility:hidden}</style>
</head>
<body>
  Hello, AMP4ADS world.
</body>
</html>
`
