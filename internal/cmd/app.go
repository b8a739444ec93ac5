// Package cmd provides the CLI commands for ntodo.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ntodo/ntodo/internal/apperrors"
	"github.com/ntodo/ntodo/internal/notion"
	"github.com/ntodo/ntodo/internal/server"
	"github.com/ntodo/ntodo/internal/tasks"
	"github.com/ntodo/ntodo/internal/todo"
	"github.com/ntodo/ntodo/internal/version"
)

const (
	// defaultPort is the default task API port.
	defaultPort = 8080
)

// verboseFlag is the shared verbose flag for all commands.
var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "Enable verbose logging",
}

// LogFormat represents the log output format.
type LogFormat string

const (
	// LogFormatText is the human-readable text format (default).
	LogFormatText LogFormat = "text"
	// LogFormatJSON is the JSON-formatted structured logs.
	LogFormatJSON LogFormat = "json"
)

// getLogFormat returns the configured log format from NTODO_LOG_FORMAT.
func getLogFormat() LogFormat {
	val := strings.ToLower(os.Getenv("NTODO_LOG_FORMAT"))
	switch val {
	case "json":
		return LogFormatJSON
	case "text", "":
		return LogFormatText
	default:
		// Invalid format - will warn after logger is set up
		return LogFormatText
	}
}

// setupLogging configures the global logger based on the verbose flag and NTODO_LOG_FORMAT.
func setupLogging(cmd *cli.Command) {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	format := getLogFormat()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))

	// Warn about invalid format after logger is set up
	envVal := strings.ToLower(os.Getenv("NTODO_LOG_FORMAT"))
	if envVal != "" && envVal != "text" && envVal != "json" {
		slog.Warn("Invalid NTODO_LOG_FORMAT value, using text format", "value", envVal)
	}

	if level == slog.LevelDebug {
		slog.Debug("Verbose logging enabled")
	}
}

// NewApp creates the CLI application.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "ntodo",
		Usage:   "Use a Notion database as a task list",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Notion API token",
				Sources: cli.EnvVars("NTODO_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "Notion task database ID",
				Sources: cli.EnvVars("NTODO_DATABASE_ID"),
			},
			verboseFlag,
		},
		Commands: []*cli.Command{
			serveCommand(),
			listCommand(),
			addCommand(),
			doneCommand(),
			reopenCommand(),
			updateCommand(),
			deleteCommand(),
			validateCommand(),
		},
	}
}

// setupService builds the task service from environment configuration and
// command flags.
func setupService(cmd *cli.Command) (*tasks.Service, *tasks.Config, error) {
	cfg, err := tasks.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// Flags override environment configuration.
	if token := cmd.String("token"); token != "" {
		cfg.Token = token
	}
	if database := cmd.String("database"); database != "" {
		cfg.DatabaseID = database
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	client := notion.NewClient(cfg.Token, notion.WithLogger(slog.Default()))
	service := tasks.NewService(client, cfg, tasks.WithLogger(slog.Default()))

	return service, cfg, nil
}

// serveCommand creates the serve subcommand.
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the task API server with background refresh",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP port to listen on",
				Value:   defaultPort,
				Sources: cli.EnvVars("NTODO_PORT"),
			},
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			service, cfg, err := setupService(cmd)
			if err != nil {
				return err
			}

			srv := server.NewServer(&server.Config{
				Port:         cmd.Int("port"),
				PollInterval: cfg.PollInterval,
			}, service, slog.Default())

			return srv.Start(ctx)
		},
	}
}

// listCommand creates the list subcommand.
func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Fetch and display the task list",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			service, _, err := setupService(cmd)
			if err != nil {
				return err
			}

			items, err := service.Poll(ctx)
			if err != nil {
				return err
			}

			displayTasks(items)
			return nil
		},
	}
}

// addCommand creates the add subcommand.
func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a new task",
		ArgsUsage: "<summary>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "completed",
				Usage: "Create the task already completed",
			},
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return apperrors.ErrSummaryRequired
			}
			summary := strings.Join(cmd.Args().Slice(), " ")

			service, _, err := setupService(cmd)
			if err != nil {
				return err
			}

			status := todo.StatusNeedsAction
			if cmd.Bool("completed") {
				status = todo.StatusCompleted
			}

			if err := service.Create(ctx, summary, status); err != nil {
				return fmt.Errorf("add task: %w", err)
			}

			slog.Info("task created", "summary", summary)
			return nil
		},
	}
}

// doneCommand creates the done subcommand.
func doneCommand() *cli.Command {
	return statusCommand("done", "Mark a task as completed", todo.StatusCompleted)
}

// reopenCommand creates the reopen subcommand.
func reopenCommand() *cli.Command {
	return statusCommand("reopen", "Mark a task as needing action", todo.StatusNeedsAction)
}

// statusCommand builds the shared done/reopen command shape.
func statusCommand(name, usage string, status todo.Status) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<task_uid>",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return apperrors.ErrTaskUIDRequired
			}
			uid := cmd.Args().Get(0)

			service, _, err := setupService(cmd)
			if err != nil {
				return err
			}

			// Populate the status shadow map before the write so the
			// hidden Notion states survive the round trip.
			if _, err := service.Poll(ctx); err != nil {
				return err
			}

			patch := tasks.ItemPatch{Status: &status}
			if err := service.Update(ctx, uid, patch); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			slog.Info("task status updated", "uid", uid, "status", string(status))
			return nil
		},
	}
}

// updateCommand creates the update subcommand.
func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of an existing task",
		ArgsUsage: "<task_uid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "summary",
				Aliases: []string{"s"},
				Usage:   "New task summary",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "New task description",
			},
			&cli.StringFlag{
				Name:  "due",
				Usage: "New due date (2006-01-02 or RFC 3339)",
			},
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return apperrors.ErrTaskUIDRequired
			}
			uid := cmd.Args().Get(0)

			var patch tasks.ItemPatch
			if summary := cmd.String("summary"); summary != "" {
				patch.Summary = &summary
			}
			if description := cmd.String("description"); description != "" {
				patch.Description = &description
			}
			if dueStr := cmd.String("due"); dueStr != "" {
				due, dateOnly, err := parseDue(dueStr)
				if err != nil {
					return fmt.Errorf("invalid due date: %w", err)
				}
				patch.Due = &due
				patch.DueDateOnly = dateOnly
			}

			service, _, err := setupService(cmd)
			if err != nil {
				return err
			}

			if err := service.Update(ctx, uid, patch); err != nil {
				return fmt.Errorf("update task: %w", err)
			}

			slog.Info("task updated", "uid", uid)
			return nil
		},
	}
}

// deleteCommand creates the delete subcommand.
func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete one or more tasks",
		ArgsUsage: "<task_uid>...",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return apperrors.ErrTaskUIDRequired
			}

			service, _, err := setupService(cmd)
			if err != nil {
				return err
			}

			uids := cmd.Args().Slice()
			if err := service.Delete(ctx, uids); err != nil {
				return fmt.Errorf("delete tasks: %w", err)
			}

			slog.Info("tasks deleted", "count", len(uids))
			return nil
		},
	}
}

// validateCommand creates the validate subcommand. It performs one query
// against the configured database, the same check a configuration must
// pass before being accepted.
func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check that the token and database ID work",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			service, cfg, err := setupService(cmd)
			if err != nil {
				return err
			}

			err = service.Validate(ctx)
			displayValidation(cfg.DatabaseID, err)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			return nil
		},
	}
}

// parseDue parses a due value in either date or timestamp form.
func parseDue(value string) (time.Time, bool, error) {
	if len(value) > len(notion.DateFormat) {
		t, err := time.Parse(time.RFC3339, value)
		return t, false, err
	}
	t, err := time.Parse(notion.DateFormat, value)
	return t, true, err
}
