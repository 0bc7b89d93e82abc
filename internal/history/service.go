// Package history records every search run through the relay server
// together with the platform results it produced.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/searchgal/searchgal/internal/search"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

var (
	ErrNotFound     = errors.New("search history entry not found")
	ErrInvalidInput = errors.New("invalid history input")
)

// Service provides history management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create records a new running search.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Entry, error) {
	if strings.TrimSpace(input.Game) == "" {
		return nil, fmt.Errorf("%w: game is required", ErrInvalidInput)
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.Mode == "" {
		input.Mode = search.ModeGame
	}

	entry := &Entry{
		ID:        input.ID,
		Game:      input.Game,
		Mode:      string(input.Mode),
		Status:    StatusRunning,
		StartedAt: s.now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, game, mode, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Game, entry.Mode, string(entry.Status), entry.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create history entry: %w", err)
	}

	return entry, nil
}

// UpdateProgress stores the latest progress counters of a running search.
func (s *Service) UpdateProgress(ctx context.Context, id string, completed, total int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET completed = ?, total = ? WHERE id = ?`, completed, total, id)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return requireRow(res)
}

// AddPlatform appends one platform result to a search.
func (s *Service) AddPlatform(ctx context.Context, id string, result search.PlatformResult) error {
	items, err := json.Marshal(result.Items)
	if err != nil {
		return fmt.Errorf("failed to encode platform items: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var position int
	if err := tx.QueryRowContext(ctx, `SELECT platform_count FROM searches WHERE id = ?`, id).Scan(&position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load history entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_platforms (search_id, position, name, color, url, item_count, error, items)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, position, result.Name, string(result.Color), result.URL, len(result.Items), result.Error, string(items)); err != nil {
		return fmt.Errorf("failed to add platform: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE searches SET platform_count = platform_count + 1, item_count = item_count + ? WHERE id = ?`,
		len(result.Items), id); err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}

	return tx.Commit()
}

// Finish moves a search to a terminal status.
func (s *Service) Finish(ctx context.Context, id string, status Status, errMsg string) error {
	if !status.Valid() || status == StatusRunning {
		return fmt.Errorf("%w: cannot finish with status %q", ErrInvalidInput, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errMsg, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish history entry: %w", err)
	}
	return requireRow(res)
}

// Get returns one search with its platform results.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM searches WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}

	platforms, err := s.platforms(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.Platforms = platforms
	return entry, nil
}

// List lists searches newest first with pagination and filtering.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}

	where, args := listFilter(opts)

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM searches`+where, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	offset := (opts.Page - 1) * opts.PageSize
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM searches`+where+` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, opts.PageSize)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(totalCount) / opts.PageSize
	if int(totalCount)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}

// Delete removes one search and its platform results.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return requireRow(res)
}

// DeleteAll deletes all history entries.
func (s *Service) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM searches`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Prune deletes finished searches that started before cutoff. Running
// searches are kept.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM searches WHERE started_at < ? AND status != ?`, cutoff.UTC(), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned search history")
	}
	return n, nil
}

// MarkInterrupted fails searches left running by a previous process.
func (s *Service) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status = ?, error = ?, finished_at = ? WHERE status = ?`,
		string(StatusFailed), "interrupted by server shutdown", s.now(), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted searches: %w", err)
	}
	return res.RowsAffected()
}

func (s *Service) platforms(ctx context.Context, id string) ([]PlatformSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, color, url, item_count, error, items FROM search_platforms WHERE search_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer rows.Close()

	platforms := make([]PlatformSummary, 0)
	for rows.Next() {
		var p PlatformSummary
		var color, items string
		if err := rows.Scan(&p.Name, &color, &p.URL, &p.ItemCount, &p.Error, &items); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		p.Color = search.ParseColor(color)
		if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
			s.logger.Warn().Err(err).Str("search", id).Str("platform", p.Name).Msg("invalid stored platform items")
		}
		if p.Items == nil {
			p.Items = []search.Item{}
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

const entryColumns = `id, game, mode, status, total, completed, platform_count, item_count, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var status string
	var finished sql.NullTime
	if err := row.Scan(&e.ID, &e.Game, &e.Mode, &status, &e.Total, &e.Completed,
		&e.PlatformCount, &e.ItemCount, &e.Error, &e.StartedAt, &finished); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	if finished.Valid {
		t := finished.Time
		e.FinishedAt = &t
	}
	return &e, nil
}

func listFilter(opts ListOptions) (string, []any) {
	var clauses []string
	var args []any
	if opts.Game != "" {
		clauses = append(clauses, `LOWER(game) LIKE ?`)
		args = append(args, "%"+strings.ToLower(opts.Game)+"%")
	}
	if opts.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, opts.Status)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
