package sqlite

import (
	"codeberg.org/miketth/keybswitch/pkg/journal/sqlite/migrations"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"database/sql"
	"fmt"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"time"
)

const (
	insertTransition = `insert into transitions (at, direction, keyboard, layout, variant, error)
values (?, ?, ?, ?, ?, ?)`

	selectRecent = `select at, direction, keyboard, layout, variant, error
from transitions
order by at desc, id desc
limit ?`
)

type Journal struct {
	db *sql.DB
}

func NewJournal(filename string, log *zap.SugaredLogger) (*Journal, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	version, err := migrations.Migrate(db, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debugw("opened journal", "path", filename, "schema", version)

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Record(ctx context.Context, t keybswitch.Transition) error {
	_, err := j.db.ExecContext(ctx, insertTransition,
		t.At.UnixNano(),
		string(t.Direction),
		t.Keyboard,
		t.Layout.Code,
		t.Layout.Variant,
		t.Err,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert: %w", err)
	}

	return nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]keybswitch.Transition, error) {
	// sqlite reads a negative limit as no limit
	if limit < 1 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}
	defer rows.Close()

	var out []keybswitch.Transition
	for rows.Next() {
		var (
			at        int64
			direction string
			t         keybswitch.Transition
		)
		if err := rows.Scan(&at, &direction, &t.Keyboard, &t.Layout.Code, &t.Layout.Variant, &t.Err); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		t.At = time.Unix(0, at)
		t.Direction = keybswitch.Direction(direction)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	return out, nil
}
