package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/harun/apibridge/pkg/registry"
	"github.com/harun/apibridge/pkg/store"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [store-file]",
	Short: "Check a store file and list its APIs",
	Long: `Load a store file, check every registered API and print a summary.
Without an argument the store configured for serve is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.StorePath
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read store file: %w", err)
	}

	s, err := store.Open(path, store.WithReservedNames(registry.BuiltinNames()...))
	if err != nil {
		return fmt.Errorf("store file %s is invalid: %w", path, err)
	}

	out := cmd.OutOrStdout()
	apis := s.List(store.Filter{})
	enabled := len(s.Enabled())

	fmt.Fprintf(out, "Store: %s\n", path)
	fmt.Fprintf(out, "APIs: %d (%d enabled, %d disabled)\n", len(apis), enabled, len(apis)-enabled)
	fmt.Fprintf(out, "Variables: %d\n", len(s.VariableNames()))

	if len(apis) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMETHOD\tURL\tSTATUS")
	for _, d := range apis {
		fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\n", d.Name, d.Method, d.BaseURL, d.Path, d.Status)
	}
	return tw.Flush()
}
