package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"golang.org/x/term"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath string
		adminEmail string
		adminName  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Switchyard database",
		Long:  "Creates the database (MySQL), migrates all tables and optionally seeds an admin user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, adminEmail, adminName)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "seed an ADMIN user with this email")
	cmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "display name for the seeded admin")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath, adminEmail, adminName string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		err = db.CreateDatabase(adminDB, cfg.Database.Name)
		closeDB(adminDB)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables on %s\n", len(db.AllModels()), describeStore(cfg.Database))

	if adminEmail != "" {
		u, err := db.SeedUser(gormDB, adminEmail, adminName, models.RoleAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded admin %s (%s)\n", u.Email, u.ID)
	}

	fmt.Fprintln(out, "\nSwitchyard database initialized successfully.")
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long:  "Runs AutoMigrate against an existing Switchyard database. Existing rows are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables on %s\n", len(db.AllModels()), describeStore(cfg.Database))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create every Switchyard table",
		Long: `Drops all Switchyard data and re-creates an empty schema.

Asks for confirmation on an interactive terminal. Use --yes in scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := describeStore(cfg.Database)

	if !skipConfirm {
		ok, err := confirmReset(cmd, target)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		err = db.DropDatabase(adminDB, cfg.Database.Name)
		if err == nil {
			err = db.CreateDatabase(adminDB, cfg.Database.Name)
		}
		closeDB(adminDB)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s re-created\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	if cfg.Database.Driver != "mysql" {
		if err := db.DropAll(gormDB); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped all tables on %s\n", target)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintln(out, "\nSwitchyard database reset successfully.")
	return nil
}

// isTerminal reports whether in is an interactive terminal. Replaced in tests.
var isTerminal = func(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// confirmReset prompts for "yes". Without a terminal it refuses rather than
// reading a scripted answer.
func confirmReset(cmd *cobra.Command, target string) (bool, error) {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	if !isTerminal(in) {
		return false, fmt.Errorf("refusing to reset %s without a terminal; pass --yes to confirm", target)
	}

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %s.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes", nil
	}
	return false, nil
}
