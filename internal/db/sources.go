package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/harvest"
)

// ErrSourceNotFound is returned when no source has the requested id
var ErrSourceNotFound = errors.New("source not found")

const sourceColumns = `id, name, url, active, max_depth, max_pages, request_delay_ms, timeout_ms, user_agent, respect_robots`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (harvest.Source, error) {
	var (
		src              harvest.Source
		depth            int
		delayMs, timeout int64
	)
	if err := row.Scan(
		&src.ID, &src.Name, &src.SeedURL, &src.Active,
		&depth, &src.MaxPages, &delayMs, &timeout,
		&src.UserAgent, &src.RespectRobots,
	); err != nil {
		return harvest.Source{}, err
	}
	src.MaxDepth = harvest.DepthFromLimit(depth)
	src.RequestDelay = time.Duration(delayMs) * time.Millisecond
	src.Timeout = time.Duration(timeout) * time.Millisecond
	return src, nil
}

// ListActiveSources returns every active source ordered by id
func (db *DB) ListActiveSources(ctx context.Context) ([]harvest.Source, error) {
	rows, err := db.client.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM tour_sources
		WHERE active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []harvest.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// GetSource loads a single source, active or not
func (db *DB) GetSource(ctx context.Context, id string) (harvest.Source, error) {
	row := db.client.QueryRowContext(ctx, `
		SELECT `+sourceColumns+`
		FROM tour_sources
		WHERE id = $1`, id)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return harvest.Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if err != nil {
		return harvest.Source{}, fmt.Errorf("failed to get source %s: %w", id, err)
	}
	return src, nil
}

// UpsertSource creates or replaces a source definition
func (db *DB) UpsertSource(ctx context.Context, src harvest.Source) error {
	_, err := db.client.ExecContext(ctx, `
		INSERT INTO tour_sources (`+sourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			active = EXCLUDED.active,
			max_depth = EXCLUDED.max_depth,
			max_pages = EXCLUDED.max_pages,
			request_delay_ms = EXCLUDED.request_delay_ms,
			timeout_ms = EXCLUDED.timeout_ms,
			user_agent = EXCLUDED.user_agent,
			respect_robots = EXCLUDED.respect_robots`,
		src.ID, src.Name, src.SeedURL, src.Active, src.WithDefaults().DepthLimit(), src.MaxPages,
		src.RequestDelay.Milliseconds(), src.Timeout.Milliseconds(),
		src.UserAgent, src.RespectRobots,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", src.ID, err)
	}
	return nil
}
