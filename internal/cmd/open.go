package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/playground/internal/config"
)

var openCmd = &cobra.Command{
	Use:   "open <file>",
	Short: "Validate a document and print its derived views",
	Long: `Open a document as the playground would: detect its runtime from the
<html> attributes, validate it under that runtime's profile and print the
validation report, the document title and the csp hashes of inline
amp-script scripts.

Use "-" to read the document from stdin.

Examples:
  # Validate a page
  playground open index.html

  # Validate as AMP for Email regardless of the <html> attributes
  playground open --runtime amp4email mail.html`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

var (
	openRuntime string
	openPlain   bool
)

func init() {
	rootCmd.AddCommand(openCmd)

	openCmd.Flags().StringVarP(&openRuntime, "runtime", "r", "", "Runtime id (default: detected from the document)")
	openCmd.Flags().BoolVar(&openPlain, "plain", false, "Disable colored output")
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	source, err := readSource(args[0])
	if err != nil {
		return err
	}

	plain := openPlain || !isTerminal(os.Stdout)
	a, err := newApp(cfg, appOptions{
		source:    source,
		runtime:   openRuntime,
		notifyOut: cmd.ErrOrStderr(),
		plain:     plain,
	})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(context.Background()); err != nil {
		return err
	}
	// Loading the document re-detects the runtime unless one was requested.
	if openRuntime == "" {
		a.orch.LoadDocument(source, args[0])
	}
	a.settle()

	r := a.report()
	writeReport(cmd.OutOrStdout(), r, plain)
	if msgs := a.failures(); len(msgs) > 0 {
		return fmt.Errorf("%s", lastOr(msgs, ""))
	}
	if r.failed() {
		return errValidationFailed
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
