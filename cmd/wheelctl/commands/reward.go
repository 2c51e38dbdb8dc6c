package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantmarket/spinwheel/internal/cli"
)

var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Inspect rewards",
}

var rewardGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a reward by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		r, err := c.GetReward(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get reward: %w", err)
		}

		if !quiet {
			return cli.PrintReward(r, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rewardCmd.AddCommand(rewardGetCmd)
	rootCmd.AddCommand(rewardCmd)
}
