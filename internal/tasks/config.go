// Package tasks implements the task list service on top of a Notion
// database: the once-per-process task template, the poll cycle that turns
// pages into task items, and the mutation paths that write them back.
package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	"github.com/ntodo/ntodo/internal/apperrors"
	"github.com/ntodo/ntodo/internal/notion"
)

const (
	// envPrefix is the prefix for all configuration environment variables.
	envPrefix = "NTODO_"

	// defaultPollInterval is how often the background worker refreshes the
	// task list when not configured otherwise.
	defaultPollInterval = time.Minute

	// defaultTitleID is the property id Notion assigns to every database's
	// title property.
	defaultTitleID = "title"
)

// Config holds the task list configuration, loaded from NTODO_* environment
// variables and optionally overridden by CLI flags.
type Config struct {
	// Token is the Notion integration token.
	Token string
	// DatabaseID is the id of the task database.
	DatabaseID string

	// Property ids (stable across renames, unlike display names).
	TitleID       string
	StatusID      string
	DueID         string
	DescriptionID string

	// FilterDueToday limits the poll query to tasks due today or earlier,
	// or without a due date.
	FilterDueToday bool

	// PollInterval is the background refresh period.
	PollInterval time.Duration
}

// LoadConfig loads configuration from NTODO_* environment variables.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		Token:          k.String("token"),
		DatabaseID:     k.String("database_id"),
		TitleID:        k.String("prop_title"),
		StatusID:       k.String("prop_status"),
		DueID:          k.String("prop_due"),
		DescriptionID:  k.String("prop_description"),
		FilterDueToday: k.Bool("filter_due_today"),
		PollInterval:   k.Duration("poll_interval"),
	}

	if cfg.TitleID == "" {
		cfg.TitleID = defaultTitleID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return cfg, nil
}

// Validate checks that the configuration is usable. The database id must be
// a UUID, with or without dashes, the two forms Notion hands out.
func (c *Config) Validate() error {
	if c.Token == "" {
		return apperrors.ErrTokenRequired
	}
	if c.DatabaseID == "" {
		return apperrors.ErrDatabaseIDRequired
	}
	if _, err := uuid.Parse(c.DatabaseID); err != nil {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidDatabaseID, c.DatabaseID)
	}
	return nil
}

// QueryFilter builds the poll query filter: tasks without a due date, plus
// tasks due today or overdue. Returns nil (no filter) when due-date
// filtering is disabled or no due property is configured.
func (c *Config) QueryFilter() any {
	if !c.FilterDueToday || c.DueID == "" {
		return nil
	}

	today := time.Now().Format(notion.DateFormat)
	return map[string]any{
		"or": []any{
			map[string]any{
				"property": c.DueID,
				"date":     map[string]any{"is_empty": true},
			},
			map[string]any{
				"property": c.DueID,
				"date":     map[string]any{"on_or_before": today},
			},
		},
	}
}
