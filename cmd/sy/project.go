package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/lifecycle"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/project"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"p"},
		Short:   "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	for _, a := range []lifecycle.Action{lifecycle.Start, lifecycle.Pause, lifecycle.Resume, lifecycle.Close} {
		cmd.AddCommand(newProjectLifecycleCmd(a))
	}
	cmd.AddCommand(newProjectStatusCmd())
	cmd.AddCommand(newProjectSettingsCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project with the default columns",
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
			p, err := project.Create(ctx, gormDB, project.CreateOpts{
				Name:        args[0],
				Description: description,
				CreatorID:   u.ID,
				Now:         time.Now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "email of the acting user (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "project description")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var (
		configPath string
		page       int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			res, err := project.List(context.Background(), gormDB, project.ListOpts{IsAdmin: true, Page: page, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMODE")
			for _, p := range res.Projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, p.CardMovementMode)
			}
			w.Flush()
			fmt.Fprintf(out, "\nPage %d of %d (%d projects)\n", res.Page, res.TotalPages, res.Total)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", project.DefaultPageSize, "projects per page")
	return cmd
}

func newProjectLifecycleCmd(a lifecycle.Action) *cobra.Command {
	var (
		configPath string
		actor      string
	)

	name := a.String()
	cmd := &cobra.Command{
		Use:   name + " <project-id>",
		Short: strings.ToUpper(name[:1]) + name[1:] + " a project",
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
			now := time.Now()
			p, err := lifecycle.Apply(ctx, gormDB, args[0], a, u.ID, now)
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), p.Name, lifecycle.ComputeSnapshot(p, now))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "email of the acting user (required)")
	return cmd
}

func newProjectStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show lifecycle timing and card progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			ctx := context.Background()
			p, err := project.Get(ctx, gormDB, args[0])
			if err != nil {
				return err
			}
			stats, err := board.ProjectStats(ctx, gormDB, p.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSnapshot(out, p.Name, lifecycle.ComputeSnapshot(p, time.Now()))
			fmt.Fprintf(out, "Cards:   %d total, %d open, %d closed (%d%% complete)\n",
				stats.TotalCards, stats.OpenCards, stats.ClosedCards, stats.CompletionPercentage)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newProjectSettingsCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		name        string
		description string
		mode        string
	)

	cmd := &cobra.Command{
		Use:   "settings <project-id>",
		Short: "Update project name, description or card movement mode",
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
			opts := project.SettingsOpts{ActorID: u.ID, Now: time.Now()}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("movement-mode") {
				m := models.MovementMode(strings.ToUpper(mode))
				opts.CardMovementMode = &m
			}
			p, err := project.UpdateSettings(ctx, gormDB, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated project %s: name=%q mode=%s\n", p.ID, p.Name, p.CardMovementMode)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "email of the acting user (required)")
	cmd.Flags().StringVar(&name, "name", "", "new project name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new project description")
	cmd.Flags().StringVar(&mode, "movement-mode", "", "FREE or FORWARD_ONLY")
	return cmd
}

func printSnapshot(out io.Writer, name string, s lifecycle.Snapshot) {
	fmt.Fprintf(out, "Project: %s (%s)\n", name, s.ProjectID)
	fmt.Fprintf(out, "Status:  %s\n", s.Status)
	fmt.Fprintf(out, "Elapsed: %s (active %s, paused %s)\n",
		formatMs(s.TotalElapsedMs), formatMs(s.ActiveMs), formatMs(s.PausedMs))
}

// formatMs renders a millisecond count as a Go duration, e.g. "1h2m3.5s".
func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
