package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mavleo96/rocket/internal/client"
	"github.com/spf13/cobra"
)

const defaultStatusTimeout = 10 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the network layout served by a running harness",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), settings.GetDuration("timeout"))
		defer cancel()

		c, err := client.CreateClient(settings.GetString("target"))
		if err != nil {
			return err
		}
		defer c.Close()

		cfg, err := c.Config(ctx)
		if err != nil {
			return fmt.Errorf("get config from %s: %w", settings.GetString("target"), err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "nodes:         %d\n", cfg.NumberOfNodes)
		fmt.Fprintf(out, "peer ports:    %d\n", cfg.BasePortPeer)
		fmt.Fprintf(out, "ws ports:      %d\n", cfg.BasePortWs)
		fmt.Fprintf(out, "ws admin:      %d\n", cfg.BasePortWsAdmin)
		fmt.Fprintf(out, "rpc ports:     %d\n", cfg.BasePortRpc)
		for i, p := range cfg.NetPartitions {
			fmt.Fprintf(out, "partition %d:   %v\n", i, p.Nodes)
		}
		for i, p := range cfg.UnlPartitions {
			fmt.Fprintf(out, "unl %d:         %v\n", i, p.Nodes)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("target", "localhost:50051", "address of the packet service")
	statusCmd.Flags().Duration("timeout", defaultStatusTimeout, "give up after this long")
}
