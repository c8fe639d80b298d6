package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newClassifyCmd creates the 'classify' subcommand, which classifies URLs without fetching them.
func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify URL...",
		Short: "Classifies one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tTYPE\tCONFIDENCE")
			for _, raw := range args {
				result := appInstance.Classify(raw)
				fmt.Fprintf(w, "%s\t%s\t%.2f\n", raw, result.LinkType, result.Confidence)
			}
			return w.Flush()
		},
	}
}
