package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/bootstrap"
	"github.com/target/sitegate/internal/data"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/domain/model"
	"github.com/target/sitegate/internal/migrate"
	"github.com/target/sitegate/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger(os.Stderr, slog.LevelInfo)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if _, err := fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{Ctx: ctx, Logger: logger, Config: cfg, Out: os.Stdout}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"migrate-status": {
			name:        "migrate-status",
			description: "List migrations that have not been applied",
			run:         runMigrateStatus,
		},
		"stats": {
			name:        "stats",
			description: "Print the admin dashboard counters",
			run:         runStats,
		},
		"evict-post": {
			name:        "evict-post",
			description: "Drop a published post from the Redis cache",
			run:         runEvictPost,
		},
		"check-token": {
			name:        "check-token",
			description: "Verify an access token and show the resolved role",
			run:         runCheckToken,
		},
	}
}

func printUsage(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Usage: sitegate-admin <command> [flags]\n\nAvailable commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "  %-16s %s\n", name, commands()[name].description); err != nil {
			return err
		}
	}
	return nil
}

func parseTimeoutFlag(name string, args []string, def time.Duration) (time.Duration, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	timeout := fs.Duration("timeout", def, "overall command timeout")
	if err := fs.Parse(args); err != nil {
		return 0, nil, err
	}
	if *timeout <= 0 {
		return 0, nil, errors.New("timeout must be positive")
	}
	return *timeout, fs.Args(), nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	timeout, _, err := parseTimeoutFlag("migrate", args, defaultMigrationTimeout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return migrateErr
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runMigrateStatus(cmdCtx *commandContext, args []string) error {
	timeout, _, err := parseTimeoutFlag("migrate-status", args, defaultCommandTimeout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	pending, err := migrate.Pending(ctx, db)
	if err != nil {
		return fmt.Errorf("list pending migrations: %w", err)
	}
	return printPending(cmdCtx.Out, pending)
}

func printPending(w io.Writer, pending []string) error {
	if len(pending) == 0 {
		_, err := fmt.Fprintln(w, "database is up to date")
		return err
	}
	if _, err := fmt.Fprintf(w, "%d pending migration(s):\n", len(pending)); err != nil {
		return err
	}
	for _, f := range pending {
		if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
			return err
		}
	}
	return nil
}

type statsOptions struct {
	Timeout time.Duration
	JSON    bool
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := statsOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "overall command timeout")
	fs.BoolVar(&opts.JSON, "json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	stats := service.NewStatsService(service.StatsServiceOptions{
		Posts:    data.NewPostRepo(db),
		Profiles: data.NewProfileRepo(db),
		Logger:   cmdCtx.Logger,
	}).Collect(ctx)
	return printStats(cmdCtx.Out, stats, opts.JSON)
}

func printStats(w io.Writer, stats model.AdminStats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value int
	}{
		{"Users", stats.Users},
		{"Recent signups", stats.RecentSignups},
		{"Active users", stats.ActiveUsers},
		{"Posts", stats.Posts},
		{"Published", stats.PublishedPosts},
		{"Drafts", stats.DraftPosts},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%d\n", r.label, r.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runEvictPost(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("evict-post", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	slug := fs.String("slug", "", "slug of the published post")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *slug == "" {
		return errors.New("-slug is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return errors.New("redis is disabled")
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	// the post repository is never reached by EvictCached
	posts := service.NewPostService(service.PostServiceOptions{
		Repo:  data.NewPostRepo(nil),
		Cache: data.NewRedisCacheRepo(client),
	})
	removed, err := posts.EvictCached(ctx, *slug)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmdCtx.Out, "slug %q evicted: %t\n", *slug, removed)
	return err
}

func runCheckToken(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("check-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	token := fs.String("token", "", "access token to verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("-token is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	identity, err := bootstrap.BuildIdentity(ctx, cmdCtx.Config.Auth, cmdCtx.Logger)
	if err != nil {
		return err
	}
	id, err := identity.Verifier.Verify(ctx, *token)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return printIdentity(cmdCtx.Out, id)
}

func printIdentity(w io.Writer, id domainauth.Identity) error {
	role := domainauth.ResolveRole(&id)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	lines := [][2]string{
		{"ID", id.ID},
		{"Email", id.Email},
		{"Provider", id.AuthProvider},
		{"Role", string(role)},
		{"Home", domainauth.HomePath(role)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
