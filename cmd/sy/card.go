package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/timeline"
)

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Card management commands",
	}

	cmd.AddCommand(newCardCreateCmd())
	cmd.AddCommand(newCardMoveCmd())
	cmd.AddCommand(newCardStatusCmd("close", "Close a card", models.CardClosed))
	cmd.AddCommand(newCardStatusCmd("reopen", "Reopen a closed card", models.CardOpen))
	cmd.AddCommand(newCardTimelineCmd())
	return cmd
}

func newCardCreateCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		projectID   string
		columnID    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a card at the bottom of a column",
		Long:  "Creates a card in --column, or in the first column of --project when no column is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			ctx := context.Background()
			u, err := resolveActor(ctx, gormDB, actor)
			if err != nil {
				return err
			}
			if columnID == "" {
				cols, err := board.ListColumns(ctx, gormDB, projectID)
				if err != nil {
					return err
				}
				if len(cols) == 0 {
					return fmt.Errorf("project %s has no columns", projectID)
				}
				columnID = cols[0].ID
			}
			card, err := board.CreateCard(ctx, gormDB, board.CreateCardOpts{
				ProjectID:   projectID,
				ColumnID:    columnID,
				Name:        args[0],
				Description: description,
				ActorID:     u.ID,
				Now:         time.Now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created card %s (%s) at position %d\n", card.ID, card.Name, card.Order)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "email of the acting user (required)")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.Flags().StringVar(&columnID, "column", "", "column id (defaults to the first column)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "card description")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newCardMoveCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		columnID   string
		order      int
	)

	cmd := &cobra.Command{
		Use:   "move <card-id>",
		Short: "Move a card to a position in a column",
		Long:  "Moves a card to --order (0-based) in --column. Omit --column to reorder within the current column.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			ctx := context.Background()
			u, err := resolveActor(ctx, gormDB, actor)
			if err != nil {
				return err
			}
			if columnID == "" {
				current, err := board.GetCard(ctx, gormDB, args[0])
				if err != nil {
					return err
				}
				columnID = current.ColumnID
			}
			card, err := board.MoveCard(ctx, gormDB, board.MoveOpts{
				CardID:         args[0],
				TargetColumnID: columnID,
				TargetOrder:    order,
				ActorID:        u.ID,
				Now:            time.Now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved card %s to column %s position %d\n", card.ID, card.ColumnID, card.Order)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "email of the acting user (required)")
	cmd.Flags().StringVar(&columnID, "column", "", "target column id")
	cmd.Flags().IntVar(&order, "order", 0, "target position, 0-based (required)")
	cmd.MarkFlagRequired("order")
	return cmd
}

func newCardStatusCmd(use, short string, status models.CardStatus) *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   use + " <card-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			ctx := context.Background()
			u, err := resolveActor(ctx, gormDB, actor)
			if err != nil {
				return err
			}
			card, err := board.SetCardStatus(ctx, gormDB, args[0], status, u.ID, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %s is now %s\n", card.ID, card.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "email of the acting user (required)")
	return cmd
}

func newCardTimelineCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "timeline <card-id>",
		Short: "Show how long a card spent in each column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			tl, err := timeline.Load(context.Background(), gormDB, args[0], time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Card: %s (%s)\n\n", tl.CardName, tl.CardID)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COLUMN\tENTERED\tDURATION\t")
			for _, seg := range tl.Segments {
				marker := ""
				if seg.IsCurrent {
					marker = "(current)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", seg.ColumnName, seg.EnteredAt.Format(time.RFC3339), formatMs(seg.DurationMs), marker)
			}
			w.Flush()
			fmt.Fprintf(out, "\nTotal: %s\n", formatMs(tl.TotalTimeMs))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
