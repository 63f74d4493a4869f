package sitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"logsite/internal/services"
	"logsite/internal/sites"
)

// Record is a stored site with its bookkeeping timestamps.
type Record struct {
	Config    sites.SiteConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Names returns the configured site names in ascending order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := retryOnBusy(ctx, func() error {
		names = names[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT name FROM sites ORDER BY name")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list site names: %w", err)
	}
	return names, nil
}

// List returns every stored site ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(names))
	for _, name := range names {
		rec, err := s.record(ctx, name)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get returns the configuration stored under name.
func (s *Store) Get(ctx context.Context, name string) (sites.SiteConfig, error) {
	rec, err := s.record(ctx, name)
	if err != nil {
		return sites.SiteConfig{}, err
	}
	return rec.Config, nil
}

func (s *Store) record(ctx context.Context, name string) (Record, error) {
	name = strings.TrimSpace(name)
	var rec Record
	err := retryOnBusy(ctx, func() error {
		var created, updated string
		row := s.db.QueryRowContext(ctx,
			"SELECT name, address, username, password, created_at, updated_at FROM sites WHERE name = ?", name)
		cfg := sites.SiteConfig{}
		if err := row.Scan(&cfg.Name, &cfg.Address, &cfg.Credentials.Username, &cfg.Credentials.Password, &created, &updated); err != nil {
			return err
		}
		rules, err := s.transforms(ctx, name)
		if err != nil {
			return err
		}
		cfg.Transforms = rules
		rec = Record{Config: cfg, CreatedAt: parseTime(created), UpdatedAt: parseTime(updated)}
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, services.Wrap(services.ErrNotFound, "sitestore", "get", fmt.Sprintf("site %q", name), nil)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get site %q: %w", name, err)
	}
	return rec, nil
}

func (s *Store) transforms(ctx context.Context, name string) ([]sites.TransformRule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT filenames, match_pattern, find_pattern, replace_with FROM transforms WHERE site = ? ORDER BY position", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []sites.TransformRule
	for rows.Next() {
		var rule sites.TransformRule
		if err := rows.Scan(&rule.Filenames, &rule.Match, &rule.Find, &rule.Replace); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Save inserts or replaces a site configuration. Name and address are
// required.
func (s *Store) Save(ctx context.Context, cfg sites.SiteConfig) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Name == "" {
		return services.Wrap(services.ErrValidation, "sitestore", "save", "site name is required", nil)
	}
	if cfg.Address == "" {
		return services.Wrap(services.ErrValidation, "sitestore", "save", fmt.Sprintf("site %q has no address", cfg.Name), nil)
	}

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `INSERT INTO sites (name, address, username, password, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				address = excluded.address,
				username = excluded.username,
				password = excluded.password,
				updated_at = excluded.updated_at`,
			cfg.Name, cfg.Address, cfg.Credentials.Username, cfg.Credentials.Password, stamp, stamp); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM transforms WHERE site = ?", cfg.Name); err != nil {
			return err
		}
		for i, rule := range cfg.Transforms {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO transforms (site, position, filenames, match_pattern, find_pattern, replace_with) VALUES (?, ?, ?, ?, ?, ?)",
				cfg.Name, i, rule.Filenames, rule.Match, rule.Find, rule.Replace); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save site %q: %w", cfg.Name, err)
	}
	return nil
}

// Delete removes the named site and its transform rules.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM sites WHERE name = ?", name)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete site %q: %w", name, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "sitestore", "delete", fmt.Sprintf("site %q", name), nil)
	}
	return nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}
