package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ntodo/ntodo/internal/apperrors"
	"github.com/ntodo/ntodo/internal/notion"
	"github.com/ntodo/ntodo/internal/todo"
)

// Service drives the poll-then-diff cycle between the Notion database and
// the task list: it decodes query results into task items and pushes
// user-initiated mutations back, re-polling after every mutation so state
// converges.
type Service struct {
	client    *notion.Client
	cfg       *Config
	templates *TemplateCache
	logger    *slog.Logger

	// mu guards the poll snapshot and the status shadow map.
	mu     sync.Mutex
	items  []todo.Item
	polled bool
	// statusSeen maps page id to the last Notion status observed for it.
	// It disambiguates the lossy two-valued host status back into the
	// four-valued Notion status on writes. Entries are overwritten on
	// every poll and never purged; stale entries for deleted pages are
	// simply never looked up again.
	statusSeen map[string]string
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a task service for the configured database.
func NewService(client *notion.Client, cfg *Config, opts ...ServiceOption) *Service {
	s := &Service{
		client:     client,
		cfg:        cfg,
		logger:     slog.Default(),
		statusSeen: make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.templates = NewTemplateCache(client, cfg.DatabaseID, s.logger)
	return s
}

// Poll queries the database, decodes every page into a task item in server
// order, and records each page's Notion status in the shadow map.
func (s *Service) Poll(ctx context.Context) ([]todo.Item, error) {
	pages, err := s.client.QueryDatabase(ctx, s.cfg.DatabaseID, s.cfg.QueryFilter())
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}

	items := make([]todo.Item, 0, len(pages))
	seen := make(map[string]string, len(pages))

	for i := range pages {
		item, notionStatus, err := s.decodeItem(&pages[i])
		if err != nil {
			return nil, fmt.Errorf("poll: page %s: %w", pages[i].ID, err)
		}
		if notionStatus != "" {
			seen[pages[i].ID] = notionStatus
		}
		items = append(items, item)
	}

	s.mu.Lock()
	s.items = items
	s.polled = true
	for pageID, status := range seen {
		s.statusSeen[pageID] = status
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "poll complete", "tasks", len(items))
	return items, nil
}

// decodeItem translates one page into a task item. Title and status are
// required; description and due degrade to absent fields when the property
// is unconfigured, missing, or empty.
func (s *Service) decodeItem(page *notion.Page) (todo.Item, string, error) {
	title, err := notion.DecodeProperty(page, s.cfg.TitleID)
	if err != nil {
		return todo.Item{}, "", fmt.Errorf("title: %w", err)
	}

	status, err := notion.DecodeProperty(page, s.cfg.StatusID)
	if err != nil {
		return todo.Item{}, "", fmt.Errorf("status: %w", err)
	}

	item := todo.Item{
		UID:     page.ID,
		Summary: strings.TrimSpace(title.Text),
		Status:  todo.StatusFromNotion(status.Text),
	}

	if s.cfg.DescriptionID != "" {
		if v, err := notion.DecodeProperty(page, s.cfg.DescriptionID); err == nil && !v.IsAbsent() {
			if text := strings.TrimSpace(v.Text); text != "" {
				item.Description = &text
			}
		}
	}

	if s.cfg.DueID != "" {
		if v, err := notion.DecodeProperty(page, s.cfg.DueID); err == nil && v.Kind == notion.KindTime {
			due := v.Time
			item.Due = &due
			item.DueDateOnly = v.DateOnly
		}
	}

	return item, status.Text, nil
}

// Items returns the last poll snapshot. The error distinguishes
// "never polled yet" from an empty task list.
func (s *Service) Items() ([]todo.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.polled {
		return nil, apperrors.ErrNotPolled
	}

	items := make([]todo.Item, len(s.items))
	copy(items, s.items)
	return items, nil
}

// lastStatus returns the shadow map entry for a page, or "" when the page
// was never seen by a poll.
func (s *Service) lastStatus(uid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusSeen[uid]
}

// Create adds a new task. Only the title and status are settable at
// creation; everything else is stripped from the template so the API never
// sees read-only or derived properties.
func (s *Service) Create(ctx context.Context, summary string, status todo.Status) error {
	if summary == "" {
		return apperrors.ErrSummaryRequired
	}

	template, err := s.templates.Get(ctx)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	if err := notion.EncodeProperty(template, s.cfg.TitleID, notion.TextValue(summary)); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	// A fresh task has no previous Notion status; the plain two-way
	// mapping applies.
	notionStatus := todo.StatusToNotion(status, "")
	if err := notion.EncodeProperty(template, s.cfg.StatusID, notion.TextValue(notionStatus)); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	notion.KeepProperties(template, s.cfg.TitleID, s.cfg.StatusID)

	created, err := s.client.CreatePage(ctx, template)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	s.logger.InfoContext(ctx, "task created", "uid", created.ID, "summary", summary)

	if _, err := s.Poll(ctx); err != nil {
		return err
	}
	return nil
}

// ItemPatch is a partial task update; nil fields are left untouched.
type ItemPatch struct {
	Summary     *string
	Status      *todo.Status
	Due         *time.Time
	DueDateOnly bool
	Description *string
}

// Update applies a patch to an existing task. The status write is
// reconciled against the shadow map entry for the page so a host-side
// toggle cannot destroy the hidden "In progress"/"Archived" states.
func (s *Service) Update(ctx context.Context, uid string, patch ItemPatch) error {
	if uid == "" {
		return apperrors.ErrTaskUIDRequired
	}

	template, err := s.templates.Get(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	var keep []string

	if patch.Summary != nil {
		if err := notion.EncodeProperty(template, s.cfg.TitleID, notion.TextValue(*patch.Summary)); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		keep = append(keep, s.cfg.TitleID)
	}

	if patch.Status != nil {
		notionStatus := todo.StatusToNotion(*patch.Status, s.lastStatus(uid))
		if err := notion.EncodeProperty(template, s.cfg.StatusID, notion.TextValue(notionStatus)); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		keep = append(keep, s.cfg.StatusID)
	}

	if patch.Due != nil && s.cfg.DueID != "" {
		due := notion.TimeValue(*patch.Due, patch.DueDateOnly)
		if err := notion.EncodeProperty(template, s.cfg.DueID, due); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		keep = append(keep, s.cfg.DueID)
	}

	if patch.Description != nil && s.cfg.DescriptionID != "" {
		if err := notion.EncodeProperty(template, s.cfg.DescriptionID, notion.TextValue(*patch.Description)); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		keep = append(keep, s.cfg.DescriptionID)
	}

	if len(keep) == 0 {
		return apperrors.ErrEmptyUpdate
	}

	notion.KeepProperties(template, keep...)

	if _, err := s.client.UpdatePage(ctx, uid, template.Properties); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	s.logger.InfoContext(ctx, "task updated", "uid", uid)

	if _, err := s.Poll(ctx); err != nil {
		return err
	}
	return nil
}

// Delete removes the given tasks. Deletes fan out concurrently and every
// id is attempted even when some fail; the first failure surfaces as the
// aggregate result after the re-poll.
func (s *Service) Delete(ctx context.Context, uids []string) error {
	if len(uids) == 0 {
		return nil
	}

	errCh := make(chan error, len(uids))
	var wg sync.WaitGroup

	for _, uid := range uids {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			if err := s.client.DeletePage(ctx, uid); err != nil {
				s.logger.WarnContext(ctx, "delete failed", "uid", uid, "error", err)
				errCh <- fmt.Errorf("delete %s: %w", uid, err)
			}
		}(uid)
	}

	wg.Wait()
	close(errCh)

	var deleteErr error
	for err := range errCh {
		if deleteErr == nil {
			deleteErr = err
		}
	}

	// Converge even after a partial failure; the surviving tasks should
	// reflect what actually happened.
	if _, err := s.Poll(ctx); err != nil && deleteErr == nil {
		deleteErr = err
	}

	if deleteErr == nil {
		s.logger.InfoContext(ctx, "tasks deleted", "count", len(uids))
	}
	return deleteErr
}

// Validate performs one query against the database, the credential check a
// configuration must pass before being accepted.
func (s *Service) Validate(ctx context.Context) error {
	return s.client.Validate(ctx, s.cfg.DatabaseID)
}
