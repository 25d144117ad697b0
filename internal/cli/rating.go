package cli

import (
	"encoding/base64"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/rating"
)

func newRatingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rating",
		Short: "Rating issuance commands (operators only)",
	}

	cmd.AddCommand(newRatingSealCmd())

	return cmd
}

func newRatingSealCmd() *cobra.Command {
	var playerID string
	var value int

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a rating for a player",
		Long: `Seal an integer rating so that only the server can compare it. The sealed
value is bound to the player id and is rejected for anyone else. Sealing needs
the server's rating secret (--secret or RATING_SECRET) and never contacts the
server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RatingSecret == "" {
				return errors.New("--secret or RATING_SECRET is required")
			}

			sealer, err := rating.NewSealer([]byte(cfg.RatingSecret))
			if err != nil {
				return err
			}
			sealed, err := sealer.Seal(model.PlayerID(playerID), value)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(SealedRating{
				PlayerID: playerID,
				Rating:   base64.StdEncoding.EncodeToString(sealed),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "Player id the rating is bound to (required)")
	cmd.Flags().IntVar(&value, "value", 0, "Rating value (required)")
	cmd.Flags().StringVar(&cfg.RatingSecret, "secret", cfg.RatingSecret, "Rating secret (env: RATING_SECRET)")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}
