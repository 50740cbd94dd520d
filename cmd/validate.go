package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/starnotary/jsonx"
)

type validateReport struct {
	Blocks    uint64   `json:"blocks"`
	Offending []uint64 `json:"offending"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Audit every block hash and link of the ledger",
	Long: `Recomputes every block hash and checks every link, then prints the
offending heights. Exits non-zero when any height is reported.
Examples:
  validate -d ./node-data
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, bs, err := openChain(nil)
		if err != nil {
			return err
		}
		defer bs.MustClose()

		ctx := cmd.Context()
		offending, err := bc.ValidateChain(ctx)
		if err != nil {
			return err
		}
		height, err := bc.Height(ctx)
		if err != nil {
			return err
		}

		out, err := jsonx.MarshalIndent(validateReport{Blocks: height, Offending: offending})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if len(offending) > 0 {
			return fmt.Errorf("%d offending blocks", len(offending))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
