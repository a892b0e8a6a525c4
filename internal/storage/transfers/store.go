// Package transfers keeps a SQLite journal of submitted transfers.
package transfers

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

const defaultListLimit = 50

// ErrNotFound no transfer with the given id.
var ErrNotFound = errors.New("transfer not found")

// Store reads and writes transfer records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create journal dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set busy_timeout")
	}
	if err := NewMigrator(db).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, rec domain.TransferRecord) error {
	if rec.ID == "" {
		return errors.New("transfer id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers(
			id, created_at, updated_at, from_addr, to_addr, symbol, amount,
			chain_id, tx_hash, block, status, error
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(), rec.From.Hex(), rec.To.Hex(),
		rec.Symbol, rec.Amount, int64(rec.ChainID), rec.TxHash, int64(rec.Block), string(rec.Status), rec.Error)
	if err != nil {
		return errors.Wrapf(err, "insert transfer %s", rec.ID)
	}
	return nil
}

// Update stores the mutable fields of rec: hash, block, status and error.
func (s *Store) Update(ctx context.Context, rec domain.TransferRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfers
		SET updated_at = ?, tx_hash = ?, block = ?, status = ?, error = ?
		WHERE id = ?
	`, rec.UpdatedAt.UnixMilli(), rec.TxHash, int64(rec.Block), string(rec.Status), rec.Error, rec.ID)
	if err != nil {
		return errors.Wrapf(err, "update transfer %s", rec.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, rec.ID)
	}
	return nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (domain.TransferRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, from_addr, to_addr, symbol, amount,
		       chain_id, tx_hash, block, status, error
		FROM transfers
		WHERE id = ?
	`, id)

	rec, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TransferRecord{}, errors.Wrap(ErrNotFound, id)
	}
	return rec, err
}

// List returns the newest records of account, at most limit.
// A zero account lists transfers of every account.
func (s *Store) List(ctx context.Context, account common.Address, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if account == (common.Address{}) {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, created_at, updated_at, from_addr, to_addr, symbol, amount,
			       chain_id, tx_hash, block, status, error
			FROM transfers
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, created_at, updated_at, from_addr, to_addr, symbol, amount,
			       chain_id, tx_hash, block, status, error
			FROM transfers
			WHERE from_addr = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, account.Hex(), limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query transfers")
	}
	defer rows.Close()

	out := make([]domain.TransferRecord, 0)
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate transfers")
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (domain.TransferRecord, error) {
	var (
		rec                  domain.TransferRecord
		createdAt, updatedAt int64
		from, to, status     string
		chainID, block       int64
	)
	err := row.Scan(&rec.ID, &createdAt, &updatedAt, &from, &to, &rec.Symbol, &rec.Amount,
		&chainID, &rec.TxHash, &block, &status, &rec.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TransferRecord{}, err
		}
		return domain.TransferRecord{}, errors.Wrap(err, "scan transfer")
	}

	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	rec.From = common.HexToAddress(from)
	rec.To = common.HexToAddress(to)
	rec.ChainID = uint64(chainID)
	rec.Block = uint64(block)
	rec.Status = domain.TransferStatus(status)
	return rec, nil
}
