package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/playground/internal/action"
	"github.com/Iron-Ham/playground/internal/config"
	"github.com/Iron-Ham/playground/internal/runtime"
)

var importEmailCmd = &cobra.Command{
	Use:   "import-email <file.eml>",
	Short: "Extract, format and validate the AMP part of an email",
	Long: `Import the text/x-amp-html part of a MIME email as a new document. The
part is formatted with the configured formatter before it is loaded, then
validated as AMP for Email.

Examples:
  playground import-email newsletter.eml
  playground import-email -o newsletter.html newsletter.eml`,
	Args: cobra.ExactArgs(1),
	RunE: runImportEmail,
}

var importEmailOutput string

func init() {
	rootCmd.AddCommand(importEmailCmd)

	importEmailCmd.Flags().StringVarP(&importEmailOutput, "output", "o", "", "Write the document to a file")
}

func runImportEmail(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Import is only offered while an email runtime is active.
	a, err := newApp(cfg, appOptions{runtime: runtime.IDEmail, notifyOut: cmd.ErrOrStderr(), plain: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(context.Background()); err != nil {
		return err
	}
	if err := a.bindings.Dispatch(action.ImportEmail, args[0]); err != nil {
		return err
	}
	a.settle()

	if a.orch.Stats().DocumentsLoaded == 0 {
		return fmt.Errorf("email not imported: %s", lastOr(a.failures(), "no result"))
	}
	return emitDocument(cmd, a, importEmailOutput)
}
