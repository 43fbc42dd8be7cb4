package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/playground/internal/config"
)

var shareCmd = &cobra.Command{
	Use:   "share <file>",
	Short: "Print a link that reopens a document in the playground",
	Long: `Print a share link for a document. The link carries the active runtime
as a query parameter and the document itself in the URL fragment, so the
document never reaches the server hosting share.base_url.`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

var shareRuntime string

func init() {
	rootCmd.AddCommand(shareCmd)

	shareCmd.Flags().StringVarP(&shareRuntime, "runtime", "r", "", "Runtime id (default: detected from the document)")
}

func runShare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	source, err := readSource(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{source: source, runtime: shareRuntime})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(context.Background()); err != nil {
		return err
	}
	if shareRuntime == "" {
		a.orch.LoadDocument(source, args[0])
	}
	a.settle()

	link, err := a.orch.ShareURL()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}
