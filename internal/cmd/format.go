package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/playground/internal/action"
	"github.com/Iron-Ham/playground/internal/config"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/fsutil"
)

var formatCmd = &cobra.Command{
	Use:   "format <file>",
	Short: "Pretty-print a document with the configured formatter",
	Long: `Format a document with the configured formatter (prettier by default)
and print the result. With --write the file is replaced in place.

Examples:
  playground format index.html
  playground format --write index.html`,
	Args: cobra.ExactArgs(1),
	RunE: runFormat,
}

var formatWrite bool

func init() {
	rootCmd.AddCommand(formatCmd)

	formatCmd.Flags().BoolVarP(&formatWrite, "write", "w", false, "Write the result back to the file")
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := args[0]
	if formatWrite && path == "-" {
		return fmt.Errorf("--write cannot be used with stdin")
	}
	source, err := readSource(path)
	if err != nil {
		return err
	}

	// Auto-import edits the buffer; only the formatter's output is wanted here.
	cfg.AutoImport.Enabled = false
	// Validation messages are not of interest; failures are reported below.
	a, err := newApp(cfg, appOptions{source: source})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(context.Background()); err != nil {
		return err
	}
	var formatErr error
	a.bus.Subscribe(event.TopicFormatCompleted, func(e event.Event) {
		if ev, ok := e.(event.FormatCompletedEvent); ok {
			formatErr = ev.Err
		}
	})
	if err := a.bindings.Dispatch(action.FormatSource, ""); err != nil {
		return err
	}
	a.settle()

	if a.orch.Stats().FormatsApplied == 0 {
		if formatErr != nil {
			return formatErr
		}
		return fmt.Errorf("format failed: %s", lastOr(a.failures(), "no result"))
	}

	formatted := a.buffer.Source()
	if !formatWrite {
		_, err := io.WriteString(cmd.OutOrStdout(), formatted)
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, []byte(formatted), info.Mode().Perm()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Formatted %s\n", path)
	return nil
}

func lastOr(msgs []string, fallback string) string {
	if len(msgs) == 0 {
		return fallback
	}
	return msgs[len(msgs)-1]
}
