package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/starnotary/block"
	"github.com/mezonai/starnotary/jsonx"
	"github.com/mezonai/starnotary/notary"
)

type BlockQuery struct {
	Height  int64
	Hash    string
	Address string
}

var blockQuery BlockQuery

var blockCmd = &cobra.Command{
	Use:   "block [flags]",
	Short: "Print blocks as JSON",
	Long: `Looks blocks up by height, hash or claimant address.
Examples:
  block --height 3
  block --hash 8a3e...
  block --address 142BDCeSGbXjWKaAnYXbMpZ6sbrSAo3DpZ
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, bs, err := openChain(nil)
		if err != nil {
			return err
		}
		defer bs.MustClose()

		ctx := cmd.Context()
		var blocks []*block.Block
		switch {
		case blockQuery.Height >= 0:
			b, err := bc.GetByHeight(ctx, uint64(blockQuery.Height))
			if err != nil {
				return err
			}
			blocks = append(blocks, b)
		case blockQuery.Hash != "":
			b, err := bc.GetByHash(ctx, blockQuery.Hash)
			if err != nil {
				return err
			}
			blocks = append(blocks, b)
		case blockQuery.Address != "":
			if blocks, err = bc.GetByClaimant(ctx, blockQuery.Address); err != nil {
				return err
			}
		default:
			return fmt.Errorf("one of --height, --hash or --address is required")
		}

		views := make([]*notary.StarBlock, 0, len(blocks))
		for _, b := range blocks {
			v, err := notary.View(b)
			if err != nil {
				return err
			}
			views = append(views, v)
		}
		out, err := jsonx.MarshalIndent(views)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)
	blockCmd.Flags().Int64Var(&blockQuery.Height, "height", -1, "block height")
	blockCmd.Flags().StringVar(&blockQuery.Hash, "hash", "", "block hash")
	blockCmd.Flags().StringVar(&blockQuery.Address, "address", "", "claimant address")
}
