package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/playground/internal/action"
	"github.com/Iron-Ham/playground/internal/config"
	"github.com/Iron-Ham/playground/internal/fsutil"
)

var templateCmd = &cobra.Command{
	Use:   "template <url>",
	Short: "Load a template and print it",
	Long: `Download a template as a new document, detect its runtime and validate
it. The document is printed to stdout, or written to --output, and the
validation report goes to stderr.

Relative URLs are resolved against template.base_url.

Examples:
  playground template https://example.com/templates/hello.html
  playground template -o hello.html hello.html`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplate,
}

var templateOutput string

func init() {
	rootCmd.AddCommand(templateCmd)

	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "Write the document to a file")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{notifyOut: cmd.ErrOrStderr(), plain: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(context.Background()); err != nil {
		return err
	}
	if err := a.bindings.Dispatch(action.LoadTemplate, args[0]); err != nil {
		return err
	}
	a.settle()

	if a.orch.Stats().DocumentsLoaded == 0 {
		return fmt.Errorf("template not loaded: %s", lastOr(a.failures(), "no result"))
	}
	return emitDocument(cmd, a, templateOutput)
}

// emitDocument writes the loaded document to output (stdout when empty) and
// the report to stderr.
func emitDocument(cmd *cobra.Command, a *app, output string) error {
	r := a.report()
	writeReport(cmd.ErrOrStderr(), r, true)

	if output == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), r.Source)
		return err
	}
	if err := fsutil.WriteFileAtomic(output, []byte(r.Source), 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}
