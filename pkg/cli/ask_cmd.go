package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(envFile *string) *cobra.Command {
	var (
		asJSON  bool
		showSQL bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			a, _, cleanup, err := bootstrap(cmd.Context(), *envFile, io.Discard)
			if err != nil {
				return err
			}
			defer cleanup()

			result := a.Pipeline.Process(cmd.Context(), question)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			if showSQL && result.SQL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] %s\n", result.TierName, result.SQL)
			}
			if !result.Success {
				return fmt.Errorf("no answer produced")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&showSQL, "show-sql", false, "Print the executed SQL and strategy")

	return cmd
}
