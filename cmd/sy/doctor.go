package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, schema and board ordering",
		Long:  "Runs diagnostic checks: config, database connection, schema, and that every column holds card orders 0..N-1.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Switchyard Doctor")
	fmt.Fprintln(out, "=================")

	var results []checkResult

	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	var gormDB *gorm.DB
	if cfg != nil {
		var dbResult checkResult
		gormDB, dbResult = checkDatabase(cfg)
		results = append(results, dbResult)
	} else {
		results = append(results, checkResult{"Database", "FAIL", "skipped (no config)"})
	}

	if gormDB != nil {
		defer closeDB(gormDB)
		schema := checkSchema(gormDB)
		results = append(results, schema)
		if schema.status == "PASS" {
			results = append(results, checkOrdering(cmd.Context(), gormDB)...)
		}
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", path}
}

func checkDatabase(cfg *config.Config) (*gorm.DB, checkResult) {
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, checkResult{"Database", "FAIL", err.Error()}
	}
	sqlDB, err := gormDB.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		closeDB(gormDB)
		return nil, checkResult{"Database", "FAIL", err.Error()}
	}
	return gormDB, checkResult{"Database", "PASS", describeStore(cfg.Database)}
}

func checkSchema(gormDB *gorm.DB) checkResult {
	var missing []string
	for _, m := range db.AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			missing = append(missing, fmt.Sprintf("%T", m))
		}
	}
	if len(missing) > 0 {
		return checkResult{"Schema", "FAIL", fmt.Sprintf("missing tables for %v (run sy db migrate)", missing)}
	}
	return checkResult{"Schema", "PASS", fmt.Sprintf("%d tables", len(db.AllModels()))}
}

// checkOrdering verifies the dense card order of every column, one result
// per project.
func checkOrdering(ctx context.Context, gormDB *gorm.DB) []checkResult {
	if ctx == nil {
		ctx = context.Background()
	}
	var projects []models.Project
	if err := gormDB.WithContext(ctx).Order("name ASC").Find(&projects).Error; err != nil {
		return []checkResult{{"Card order", "FAIL", err.Error()}}
	}
	if len(projects) == 0 {
		return []checkResult{{"Card order", "WARN", "no projects"}}
	}

	var results []checkResult
	for _, p := range projects {
		name := "Card order " + p.Name
		problems, err := board.VerifyProject(ctx, gormDB, p.ID)
		if err != nil {
			results = append(results, checkResult{name, "FAIL", err.Error()})
			continue
		}
		if len(problems) == 0 {
			results = append(results, checkResult{name, "PASS", "all columns dense"})
			continue
		}
		ids := make([]string, 0, len(problems))
		for id := range problems {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			results = append(results, checkResult{name, "FAIL", problems[id].Error()})
		}
	}
	return results
}
