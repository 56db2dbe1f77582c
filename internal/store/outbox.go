package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/debuck1718/smartstudent/internal/model"
)

// OutboxStore persists pending outbound requests. Rows are inserted and
// deleted, never updated.
type OutboxStore struct {
	db *sql.DB
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

const outboxCols = `id, url, init, created_at`

func scanOutbox(scanner interface{ Scan(...any) error }) (*model.OutboxRecord, error) {
	var r model.OutboxRecord
	if err := scanner.Scan(&r.ID, &r.URL, &r.Init, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Add appends a record and returns the id assigned by the store.
func (s *OutboxStore) Add(ctx context.Context, url string, init []byte) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO outbox (url, init) VALUES (?, ?)`, url, init)
	if err != nil {
		return 0, fmt.Errorf("insert outbox entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *OutboxStore) Get(ctx context.Context, id int64) (*model.OutboxRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+outboxCols+` FROM outbox WHERE id = ?`, id)
	r, err := scanOutbox(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox entry: %w", err)
	}
	return r, nil
}

// All returns every pending record in insertion order.
func (s *OutboxStore) All(ctx context.Context) ([]model.OutboxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+outboxCols+` FROM outbox ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var records []model.OutboxRecord
	for rows.Next() {
		r, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// Delete removes a record. Deleting a missing id is not an error, so
// overlapping drains can both attempt it.
func (s *OutboxStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete outbox entry: %w", err)
	}
	return nil
}

func (s *OutboxStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
