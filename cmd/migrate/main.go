package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ogurasousui/masters-service/internal/platform/config"
	"github.com/ogurasousui/masters-service/internal/platform/logging"
)

const defaultConfigPath = "assets/local.yaml"

var (
	errUnknownAction  = errors.New("unknown action")
	errMissingArg     = errors.New("missing argument")
	errDropNotAllowed = errors.New("drop removes every service table; pass -yes to confirm")
)

// command は CLI 引数を解釈したマイグレーション操作です。
type command struct {
	action string
	n      int
}

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or "+defaultConfigPath+")")
		migrationsDir = flag.String("dir", "assets/migrations", "directory containing masters-service migrations")
		confirm       = flag.Bool("yes", false, "confirm destructive actions such as drop")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `usage: migrate [flags] <action>

actions:
  up           apply all pending migrations (default)
  down         revert all migrations
  steps N      apply N migrations, or revert when N is negative
  force V      mark version V as clean after a failed migration
  version      print the current schema version
  drop         drop every table (requires -yes)

flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd, err := parseCommand(flag.Args(), *confirm)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.Log)

	if err := runMigration(logger, cmd, *migrationsDir, cfg.Database.DSN()); err != nil {
		logger.Error("migration failed", slog.String("action", cmd.action), slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("migration completed", slog.String("action", cmd.action))
}

func parseCommand(args []string, confirm bool) (command, error) {
	if len(args) == 0 {
		return command{action: "up"}, nil
	}

	cmd := command{action: args[0]}
	switch cmd.action {
	case "up", "down", "version":
		return cmd, nil
	case "drop":
		if !confirm {
			return command{}, errDropNotAllowed
		}
		return cmd, nil
	case "steps", "force":
		if len(args) < 2 {
			return command{}, fmt.Errorf("%s: %w", cmd.action, errMissingArg)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("%s: invalid number %q: %w", cmd.action, args[1], err)
		}
		if cmd.action == "steps" && n == 0 {
			return command{}, fmt.Errorf("steps: must not be zero")
		}
		cmd.n = n
		return cmd, nil
	default:
		return command{}, fmt.Errorf("%q: %w", cmd.action, errUnknownAction)
	}
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return defaultConfigPath
}

func runMigration(logger *slog.Logger, cmd command, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch cmd.action {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "steps":
		return ignoreNoChange(m.Steps(cmd.n))
	case "force":
		return m.Force(cmd.n)
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("%q: %w", cmd.action, errUnknownAction)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
