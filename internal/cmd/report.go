package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/tui/styles"
	"github.com/Iron-Ham/playground/internal/util"
	"github.com/Iron-Ham/playground/internal/validator"
)

// excerptWidth bounds the source excerpt printed under a finding.
const excerptWidth = 80

// report is the state of the derived views once the loop has settled.
type report struct {
	Runtime *runtime.Runtime
	Title   string
	Hashes  []string
	Source  string
	// Result is nil when no validation result has been applied.
	Result *validator.Result
}

// failed reports whether the document did not pass validation.
func (r report) failed() bool {
	return r.Result == nil || !r.Result.Passed()
}

// writeReport prints r. Plain output carries no styling.
func writeReport(w io.Writer, r report, plain bool) {
	style := func(s string, render func(...string) string) string {
		if plain {
			return s
		}
		return render(s)
	}

	runtimeName := "none"
	if r.Runtime != nil {
		runtimeName = fmt.Sprintf("%s (%s)", r.Runtime.Name, r.Runtime.ID)
	}
	fmt.Fprintf(w, "%s %s\n", style("runtime:", styles.Muted.Render), runtimeName)
	if r.Title != "" {
		fmt.Fprintf(w, "%s %s\n", style("title:", styles.Muted.Render), r.Title)
	}

	if r.Result == nil {
		fmt.Fprintf(w, "%s %s\n", style("status:", styles.Muted.Render), "not validated")
	} else {
		status := string(r.Result.Status)
		if !plain {
			status = styles.StatusStyle(status).Render(styles.StatusIcon(status) + " " + status)
		}
		fmt.Fprintf(w, "%s %s (%s, %s)\n",
			style("status:", styles.Muted.Render),
			status,
			util.Plural(r.Result.ErrorCount(), "error", "errors"),
			util.Plural(r.Result.WarningCount(), "warning", "warnings"),
		)
		for _, finding := range r.Result.Errors {
			writeFinding(w, finding, r.Source, plain)
		}
	}

	if len(r.Hashes) > 0 {
		fmt.Fprintf(w, "%s %s\n", style("csp:", styles.Muted.Render), strings.Join(r.Hashes, " "))
	}
}

func writeFinding(w io.Writer, f validator.Error, source string, plain bool) {
	location := fmt.Sprintf("%d:%d", f.Line, f.Col)
	severity := string(f.Severity)
	code := f.Code
	if !plain {
		location = styles.FindingLocation.Render(location)
		severity = styles.StatusStyle(severity).Render(severity)
		code = styles.FindingCode.Render(code)
	}
	fmt.Fprintf(w, "  %s %s %s %s\n", location, severity, f.Message, code)
	if excerpt := util.Excerpt(source, f.Line, excerptWidth); excerpt != "" {
		fmt.Fprintf(w, "      %s\n", excerpt)
	}
	if f.SpecURL != "" {
		fmt.Fprintf(w, "      %s\n", f.SpecURL)
	}
}
