package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"

	"HoldemTable/internal/game/table"
)

const notifyChannel = "holdem_tables"

const schema = `
CREATE TABLE IF NOT EXISTS poker_tables (
	id         TEXT PRIMARY KEY,
	version    BIGINT NOT NULL DEFAULT 1,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS poker_chat (
	id         TEXT PRIMARY KEY,
	table_id   TEXT NOT NULL REFERENCES poker_tables(id) ON DELETE CASCADE,
	player_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS poker_chat_table_idx ON poker_chat (table_id, created_at);
`

// PostgresStore keeps each table as a JSONB row guarded by a version
// column. Commits are UPDATE ... WHERE version = $n; zero rows means
// another writer got there first and the update function is re-run.
type PostgresStore struct {
	db  *sql.DB
	dsn string
	log *log.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, logger *log.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &PostgresStore{db: db, dsn: dsn, log: logger}, nil
}

func (s *PostgresStore) CreateTable(ctx context.Context, t *table.Table) error {
	data, err := encode(withoutChat(t))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO poker_tables (id, state) VALUES ($1, $2)`, t.ID, string(data))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrTableExists
	}
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetTable(ctx context.Context, id string) (*table.Table, error) {
	t, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachChat(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) load(ctx context.Context, id string) (*table.Table, int64, error) {
	var data []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT state, version FROM poker_tables WHERE id = $1`, id).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, table.ErrTableNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get table %s: %w", id, err)
	}
	t, err := decode(data)
	if err != nil {
		return nil, 0, err
	}
	return t, version, nil
}

func (s *PostgresStore) attachChat(ctx context.Context, t *table.Table) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, body, created_at FROM (
			SELECT id, player_id, body, created_at FROM poker_chat
			WHERE table_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at`, t.ID, chatLimit)
	if err != nil {
		return fmt.Errorf("load chat %s: %w", t.ID, err)
	}
	defer rows.Close()

	t.Chat = []table.ChatMessage{}
	for rows.Next() {
		var msg table.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.PlayerID, &msg.Text, &msg.At); err != nil {
			return fmt.Errorf("scan chat: %w", err)
		}
		t.Chat = append(t.Chat, msg)
	}
	return rows.Err()
}

func (s *PostgresStore) UpdateTable(ctx context.Context, id string, u Update) error {
	if _, _, err := s.load(ctx, id); err != nil {
		return err
	}
	for _, msg := range u.Chat {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO poker_chat (id, table_id, player_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, id, msg.PlayerID, msg.Text, msg.At)
		if err != nil {
			return fmt.Errorf("append chat %s: %w", id, err)
		}
	}
	if len(u.Chat) > 0 {
		if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, id); err != nil {
			s.log.Warn("notify failed", "table", id, "err", err)
		}
	}
	return nil
}

// retryable reports a serialization failure or deadlock.
func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func (s *PostgresStore) Transaction(ctx context.Context, id string, fn TxFunc) (*table.Table, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur, version, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			if err := s.attachChat(ctx, cur); err != nil {
				return nil, err
			}
			return cur, nil
		}

		ok, err := s.commit(ctx, id, version, next)
		if retryable(err) || (err == nil && !ok) {
			s.log.Debug("transaction conflict, retrying", "table", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("transaction on table %s: %w", id, err)
		}
		if err := s.attachChat(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	}
}

// commit writes next only if the row is still at version and notifies
// listeners in the same database transaction.
func (s *PostgresStore) commit(ctx context.Context, id string, version int64, next *table.Table) (bool, error) {
	data, err := encode(withoutChat(next))
	if err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE poker_tables SET state = $1, version = version + 1, updated_at = now() WHERE id = $2 AND version = $3`,
		string(data), id, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Subscribe opens a LISTEN connection per subscriber and reloads the
// table on every notification for id. A nil notification means the
// listener reconnected, so the table is reloaded as well.
func (s *PostgresStore) Subscribe(ctx context.Context, id string, onChange func(*table.Table)) (func(), error) {
	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn("listener event", "table", id, "event", ev, "err", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", id, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = listener.Close()
		})
	}

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-subCtx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n != nil && n.Extra != id {
					continue
				}
				t, err := s.GetTable(subCtx, id)
				if err != nil {
					if subCtx.Err() == nil {
						s.log.Warn("reload after notify failed", "table", id, "err", err)
					}
					continue
				}
				onChange(t)
			}
		}
	}()
	return unsubscribe, nil
}

func (s *PostgresStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM poker_tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Close() error { return s.db.Close() }
