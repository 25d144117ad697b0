package cli

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Matchmaking queue commands",
	}

	cmd.AddCommand(newQueueJoinCmd())
	cmd.AddCommand(newQueueLeaveCmd())
	cmd.AddCommand(newQueueSizeCmd())

	return cmd
}

func newQueueJoinCmd() *cobra.Command {
	var rating string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the queue with a sealed rating",
		Long: `Join the matchmaking queue. The rating must be sealed for your player id,
for example with "fairmatch rating seal".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := base64.StdEncoding.DecodeString(rating)
			if err != nil {
				return fmt.Errorf("--rating must be base64: %w", err)
			}

			result, err := client.JoinQueue(cmd.Context(), sealed)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&rating, "rating", "", "Sealed rating, base64 (required)")
	_ = cmd.MarkFlagRequired("rating")

	return cmd
}

func newQueueLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave the queue (declines an open proposal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.LeaveQueue(cmd.Context())
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*result)
			return nil
		},
	}
}

func newQueueSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Show how many players are waiting",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.QueueSize(cmd.Context())
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*result)
			return nil
		},
	}
}
