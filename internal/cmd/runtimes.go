package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/playground/internal/config"
	"github.com/Iron-Ham/playground/internal/tui/styles"
)

var runtimesCmd = &cobra.Command{
	Use:   "runtimes",
	Short: "List the configured runtimes",
	Long: `List the runtimes documents can be validated under, in registration
order. The first runtime is active when neither runtime.initial nor the
state file names one.`,
	Args: cobra.NoArgs,
	RunE: runRuntimes,
}

var runtimesPlain bool

func init() {
	rootCmd.AddCommand(runtimesCmd)

	runtimesCmd.Flags().BoolVar(&runtimesPlain, "plain", false, "Disable colored output")
}

func runRuntimes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	runtimes, err := cfg.BuildRuntimes()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rt := range runtimes {
		id := rt.ID
		if rt.ID == cfg.Runtime.Initial {
			id += "*"
		}
		line := fmt.Sprintf("%-12s %-10s %s", id, rt.Profile, rt.Name)
		if !runtimesPlain {
			line = styles.Primary.Render(fmt.Sprintf("%-12s", id)) + " " +
				styles.Muted.Render(fmt.Sprintf("%-10s", rt.Profile)) + " " + rt.Name
		}
		if len(rt.Markers) > 0 {
			line += "  [" + strings.Join(rt.Markers, " ") + "]"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
