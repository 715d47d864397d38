package blockstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inkwell/internal/editor/ports"

	"github.com/google/uuid"
)

// ErrNotFound reports a lookup for a block id the store has never seen.
var ErrNotFound = errors.New("block not found")

// Record is one persisted block: its typed payload plus host-owned settings.
type Record struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Stretched bool            `json:"stretched"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SaveBlock inserts or updates a block payload. An empty ID is assigned a
// fresh one; the assigned ID is written back to rec.
func (s *Store) SaveBlock(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	if rec.Type == "" {
		return fmt.Errorf("block type is required")
	}
	if len(rec.Data) == 0 {
		rec.Data = json.RawMessage("{}")
	}
	if !json.Valid(rec.Data) {
		return fmt.Errorf("block data is not valid JSON")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (id, type, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			data = excluded.data,
			updated_at = excluded.updated_at
	`,
		rec.ID,
		rec.Type,
		string(rec.Data),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save block %s: %w", rec.ID, err)
	}
	return nil
}

// GetBlock returns a block by id, with its settings folded in.
func (s *Store) GetBlock(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.type, b.data, b.created_at, b.updated_at,
		       COALESCE(s.stretched, 0)
		FROM blocks b
		LEFT JOIN block_settings s ON s.block_id = b.id
		WHERE b.id = ?
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}
	return rec, nil
}

// ListBlocks returns blocks ordered by most recent update. blockType filters
// when non-empty; limit <= 0 means no limit.
func (s *Store) ListBlocks(ctx context.Context, blockType string, limit, offset int) ([]*Record, error) {
	query := `
		SELECT b.id, b.type, b.data, b.created_at, b.updated_at,
		       COALESCE(s.stretched, 0)
		FROM blocks b
		LEFT JOIN block_settings s ON s.block_id = b.id
	`
	args := []any{}
	if blockType != "" {
		query += " WHERE b.type = ?"
		args = append(args, blockType)
	}
	query += " ORDER BY b.updated_at DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteBlock removes a block and its settings.
func (s *Store) DeleteBlock(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete block %s: %w", id, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM block_settings WHERE block_id = ?", id); err != nil {
		return fmt.Errorf("delete block settings %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}

// SetStretched records whether a block spans the full editor width. The
// setting row is independent of the block row, so a stretch update scheduled
// before the first save still lands.
func (s *Store) SetStretched(ctx context.Context, blockID string, stretched bool) error {
	if blockID == "" {
		return fmt.Errorf("block id is required")
	}
	value := 0
	if stretched {
		value = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO block_settings (block_id, stretched, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(block_id) DO UPDATE SET
			stretched = excluded.stretched,
			updated_at = excluded.updated_at
	`, blockID, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set stretched for %s: %w", blockID, err)
	}
	return nil
}

// Stretched reports the stored stretch flag; unknown blocks default to false.
func (s *Store) Stretched(ctx context.Context, blockID string) (bool, error) {
	var value int
	err := s.db.QueryRowContext(ctx,
		"SELECT stretched FROM block_settings WHERE block_id = ?", blockID,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get stretched for %s: %w", blockID, err)
	}
	return value == 1, nil
}

func scanRecord(scanner interface {
	Scan(dest ...any) error
}) (*Record, error) {
	var rec Record
	var data, createdAt, updatedAt string
	var stretched int

	if err := scanner.Scan(
		&rec.ID,
		&rec.Type,
		&data,
		&createdAt,
		&updatedAt,
		&stretched,
	); err != nil {
		return nil, err
	}

	rec.Data = json.RawMessage(data)
	rec.Stretched = stretched == 1

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

var _ ports.BlockSettings = (*Store)(nil)
