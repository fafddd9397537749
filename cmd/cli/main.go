package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/flowforge/workflow/internal/config"
	"github.com/flowforge/workflow/internal/credential"
	"github.com/flowforge/workflow/internal/executor"
	"github.com/flowforge/workflow/internal/executor/javascript"
	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/node/builtin"
	"github.com/flowforge/workflow/internal/workflow"
	"github.com/flowforge/workflow/internal/yamlloader"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var runErr error
	switch cmd {
	case "init":
		runErr = runInit(cfg)
	case "import":
		runErr = runImport(cfg, logger, args)
	case "list":
		runErr = runList(cfg, logger, args)
	case "execute":
		runErr = runExecute(cfg, logger, args)
	case "history":
		runErr = runHistory(cfg, logger, args)
	case "show":
		runErr = runShow(cfg, logger, args)
	default:
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: flowforge <command> [args]

commands:
  init                          run pending migrations
  import --file X.yaml          import a workflow definition
  list [--active]               list workflows
  execute <name|id> [--input J] run a workflow and wait for it to finish
  history <name|id> [--limit N] list recent executions for a workflow
  show <execution_id>           show one execution's status and node results`)
}

// runInit applies every migrations/*.sql file not yet recorded in
// schema_migrations, in filename order. It is intentionally independent of
// cmd/migrate so the CLI has no build-time dependency on that binary.
func runInit(cfg *config.Config) error {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Strings(files)

	applied := make(map[string]bool)
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, file := range files {
		version := filepath.Base(file)
		if applied[version] {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying %s: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		fmt.Printf("applied %s\n", version)
	}
	return nil
}

// engine bundles the pieces every non-init command needs: a connection, the
// node registry, and a ready-to-trigger workflow.Service.
type engine struct {
	db       *sqlx.DB
	jsEngine *javascript.Engine
	service  *workflow.Service
	registry *node.Registry
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	jsEngine, err := javascript.NewEngine(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting javascript engine: %w", err)
	}

	registry := node.NewRegistry(logger)
	if err := builtin.RegisterAll(registry, jsEngine); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering builtin nodes: %w", err)
	}

	credentialRepo := credential.NewRepository(db)
	key, err := base64.StdEncoding.DecodeString(cfg.Credential.MasterKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("decoding credential master key: %w", err)
	}
	encryptor, err := credential.NewSimpleEncryptionService(key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring credential encryption: %w", err)
	}
	credentialService := credential.NewService(credentialRepo, encryptor)

	workflowRepo := workflow.NewRepository(db)
	workflowExecutor := executor.New(workflowRepo, registry, credentialService, logger)
	service := workflow.NewService(workflowRepo, registry, workflowExecutor, logger)

	return &engine{db: db, jsEngine: jsEngine, service: service, registry: registry}, nil
}

func (e *engine) Close() {
	e.jsEngine.Close()
	e.db.Close()
}

func runImport(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "path to the workflow YAML file")
	fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := yamlloader.LoadFile(*file, eng.registry)
	if err != nil {
		return err
	}

	wf, err := eng.service.Import(context.Background(), result.Name, result.Description, result.Active, result.Definition)
	if err != nil {
		return err
	}
	fmt.Printf("imported %s (%s)\n", wf.Name, wf.ID)
	return nil
}

func runList(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	activeOnly := fs.Bool("active", false, "only list active workflows")
	fs.Parse(args)

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	workflows, err := eng.service.List(context.Background(), *activeOnly)
	if err != nil {
		return err
	}
	for _, wf := range workflows {
		fmt.Printf("%s\t%s\tactive=%t\tversion=%d\n", wf.ID, wf.Name, wf.Active, wf.Version)
	}
	return nil
}

func runExecute(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	input := fs.String("input", "", "JSON input payload")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: execute <name|id> [--input JSON]")
	}
	ref := fs.Arg(0)
	// Flags may also follow the workflow reference
	fs.Parse(fs.Args()[1:])

	var rawInput json.RawMessage
	if *input != "" {
		if !json.Valid([]byte(*input)) {
			return fmt.Errorf("--input is not valid JSON")
		}
		rawInput = json.RawMessage(*input)
	}

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	wf, err := resolveWorkflow(eng, ref)
	if err != nil {
		return err
	}

	exec, err := eng.service.Trigger(context.Background(), wf.ID, rawInput, "cli")
	if err != nil {
		return err
	}
	fmt.Printf("execution %s finished with status %s\n", exec.ID, exec.Status)
	if exec.Error != nil {
		fmt.Printf("error: %s\n", *exec.Error)
	}
	return nil
}

func runHistory(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max executions to show")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: history <name|id> [--limit N]")
	}
	ref := fs.Arg(0)
	// Flags may also follow the workflow reference
	fs.Parse(fs.Args()[1:])

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	wf, err := resolveWorkflow(eng, ref)
	if err != nil {
		return err
	}

	executions, err := eng.service.ListExecutions(context.Background(), wf.ID, *limit)
	if err != nil {
		return err
	}
	for _, e := range executions {
		fmt.Printf("%s\t%s\tstarted=%s\n", e.ID, e.Status, e.StartedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func runShow(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show <execution_id>")
	}
	executionID := args[0]

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	exec, err := eng.service.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	fmt.Printf("execution %s\nworkflow: %s\nstatus: %s\nstarted: %s\n", exec.ID, exec.WorkflowID, exec.Status, exec.StartedAt)
	if exec.FinishedAt != nil {
		fmt.Printf("finished: %s\n", *exec.FinishedAt)
	}
	if exec.Error != nil {
		fmt.Printf("error: %s\n", *exec.Error)
	}

	nodes, err := eng.service.ListNodeExecutions(ctx, exec.ID)
	if err != nil {
		return err
	}
	fmt.Println("nodes:")
	for _, n := range nodes {
		fmt.Printf("  %s\t%s\tattempt=%d\n", n.NodeID, n.Status, n.Attempt)
	}
	return nil
}

func resolveWorkflow(eng *engine, ref string) (*workflow.Workflow, error) {
	ctx := context.Background()
	if wf, err := eng.service.Get(ctx, ref); err == nil {
		return wf, nil
	}
	return eng.service.GetByName(ctx, ref)
}
