package cli

import (
	"github.com/spf13/cobra"
)

func newProposalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Match proposal commands",
	}

	cmd.AddCommand(newProposalGetCmd())
	cmd.AddCommand(newProposalActionCmd("accept", "Accept a proposal"))
	cmd.AddCommand(newProposalActionCmd("decline", "Decline a proposal"))

	return cmd
}

func newProposalGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a proposal you take part in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Proposal(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*result)
			return nil
		},
	}
}

func newProposalActionCmd(action, short string) *cobra.Command {
	accept := action == "accept"
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.RespondToProposal(cmd.Context(), args[0], accept)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*result)
			return nil
		},
	}
}
