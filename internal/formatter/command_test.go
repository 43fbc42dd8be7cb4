package formatter

import (
	"context"
	"strings"
	"testing"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/testutil"
)

func TestCommand_Format(t *testing.T) {
	// Stand-in formatter: puts spaces around '=' and terminates the line.
	script := testutil.WriteScript(t, "fake-prettier", `sed -e 's/=/ = /' -e 's/$/;/'`)

	got, err := NewCommand(script, []string{}, nil).Format(context.Background(), "x=1")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(got) != "x = 1;" {
		t.Errorf("Format() = %q, want %q", got, "x = 1;")
	}
}

func TestCommand_ReceivesArgs(t *testing.T) {
	script := testutil.WriteScript(t, "args", `cat >/dev/null; echo "$@"`)

	got, err := NewCommand(script, nil, nil).Format(context.Background(), "<p></p>")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(got) != "--parser html" {
		t.Errorf("args = %q, want default args", got)
	}
}

func TestCommand_Failure(t *testing.T) {
	script := testutil.WriteScript(t, "failing", `
cat >/dev/null
echo "SyntaxError: Unexpected closing tag \"div\". (1:9)" >&2
echo "  > 1 | <p></div>" >&2
exit 2
`)

	_, err := NewCommand(script, nil, nil).Format(context.Background(), "<p></div>")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.IsUserFacing(err) {
		t.Errorf("formatter failures should be user-facing: %v", err)
	}
	if !errors.Is(err, errors.ErrFormatFailed) {
		t.Errorf("expected ErrFormatFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unexpected closing tag") {
		t.Errorf("error should carry the first stderr line, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "> 1 |") {
		t.Errorf("error should not carry the code frame, got %q", err.Error())
	}
}

func TestCommand_EmptyOutput(t *testing.T) {
	script := testutil.WriteScript(t, "silent", `cat >/dev/null`)

	_, err := NewCommand(script, nil, nil).Format(context.Background(), "<p></p>")
	if !errors.Is(err, errors.ErrFormatFailed) {
		t.Errorf("expected ErrFormatFailed, got %v", err)
	}
}

func TestCommand_MissingBinary(t *testing.T) {
	_, err := NewCommand("prettier-does-not-exist", nil, nil).Format(context.Background(), "x")
	if !errors.Is(err, errors.ErrFormatterUnavailable) {
		t.Fatalf("expected ErrFormatterUnavailable, got %v", err)
	}
	if !errors.IsUserFacing(err) {
		t.Error("missing formatter should be user-facing")
	}
}

func TestFirstLine(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"one":             "one",
		"\n  two \nthree": "two",
	}
	for in, want := range tests {
		if got := firstLine(in); got != want {
			t.Errorf("firstLine(%q) = %q, want %q", in, got, want)
		}
	}
}
