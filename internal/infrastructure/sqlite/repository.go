package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"chainnotes/internal/application"
	"chainnotes/internal/domain"

	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const transactionColumns = `block_number, time_stamp, hash, nonce, block_hash, transaction_index, from_addr, to_addr, value, gas, gas_price,
	is_error, txreceipt_status, input, contract_address, cumulative_gas_used, gas_used, confirmations, method_id, function_name`

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transaction_snapshots (
			user_id TEXT NOT NULL,
			address TEXT NOT NULL,
			tx_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, address)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_transactions (
			user_id TEXT NOT NULL,
			address TEXT NOT NULL,
			position INTEGER NOT NULL,
			block_number TEXT NOT NULL,
			time_stamp INTEGER NOT NULL,
			hash TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			block_hash TEXT NOT NULL,
			transaction_index INTEGER NOT NULL,
			from_addr TEXT NOT NULL,
			to_addr TEXT,
			value TEXT NOT NULL,
			gas TEXT NOT NULL,
			gas_price TEXT NOT NULL,
			is_error INTEGER NOT NULL,
			txreceipt_status INTEGER NOT NULL,
			input TEXT NOT NULL,
			contract_address TEXT,
			cumulative_gas_used TEXT NOT NULL,
			gas_used TEXT NOT NULL,
			confirmations INTEGER NOT NULL,
			method_id TEXT NOT NULL,
			function_name TEXT NOT NULL,
			PRIMARY KEY (user_id, address, position),
			UNIQUE (user_id, address, hash)
		)`,
		`CREATE INDEX IF NOT EXISTS snapshot_tx_time_idx ON snapshot_transactions (user_id, address, time_stamp)`,
		`CREATE TABLE IF NOT EXISTS text_labels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			label TEXT NOT NULL,
			cid TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE (user_id, label)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ReplaceSnapshot(ctx context.Context, snapshot domain.TransactionSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_transactions WHERE user_id = ? AND address = ?`, snapshot.UserID, snapshot.Address); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO transaction_snapshots (user_id, address, tx_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, address) DO UPDATE SET
			tx_count = excluded.tx_count,
			updated_at = excluded.updated_at`,
		snapshot.UserID, snapshot.Address, len(snapshot.Transactions), snapshot.CreatedAt.UnixMilli(), snapshot.UpdatedAt.UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_transactions (user_id, address, position, `+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, entry := range snapshot.Transactions {
		args := append([]any{snapshot.UserID, snapshot.Address, i}, transactionArgs(entry)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) QuerySnapshotTransactions(ctx context.Context, filter application.SnapshotQueryFilter) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM snapshot_transactions
		WHERE user_id = ? AND address = ? AND time_stamp >= ? AND time_stamp <= ?
		ORDER BY position ASC`,
		filter.UserID, filter.Address, filter.FromUnix(), filter.ToUnix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *Repository) GetSnapshot(ctx context.Context, userID, address string) (domain.TransactionSnapshot, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snapshot := domain.TransactionSnapshot{UserID: userID, Address: address}
	var createdAt, updatedAt int64
	if err := r.db.QueryRowContext(ctx, `SELECT created_at, updated_at FROM transaction_snapshots WHERE user_id = ? AND address = ?`, userID, address).
		Scan(&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TransactionSnapshot{}, false, nil
		}
		return domain.TransactionSnapshot{}, false, err
	}
	snapshot.CreatedAt = time.UnixMilli(createdAt).UTC()
	snapshot.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM snapshot_transactions WHERE user_id = ? AND address = ? ORDER BY position ASC`, userID, address)
	if err != nil {
		return domain.TransactionSnapshot{}, false, err
	}
	defer rows.Close()
	snapshot.Transactions, err = scanTransactions(rows)
	if err != nil {
		return domain.TransactionSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func (r *Repository) SnapshotCount(ctx context.Context, userID, address string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transaction_snapshots WHERE user_id = ? AND address = ?`, userID, address).Scan(&count)
	return count, err
}

func (r *Repository) FindLabel(ctx context.Context, userID, label string) (domain.LabeledText, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	entry := domain.LabeledText{UserID: userID, Label: label}
	var createdAt int64
	if err := r.db.QueryRowContext(ctx, `SELECT cid, created_at FROM text_labels WHERE user_id = ? AND label = ?`, userID, label).
		Scan(&entry.CID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LabeledText{}, false, nil
		}
		return domain.LabeledText{}, false, err
	}
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	return entry, true, nil
}

func (r *Repository) SaveLabel(ctx context.Context, entry domain.LabeledText) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO text_labels (user_id, label, cid, created_at) VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.Label, entry.CID, entry.CreatedAt.UnixMilli())
	if err != nil {
		var sqliteErr *driver.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return domain.ErrLabelExists
		}
		return err
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func transactionArgs(entry domain.Transaction) []any {
	return []any{
		entry.BlockNumber,
		entry.TimeStamp.Unix(),
		strings.ToLower(entry.Hash),
		int64(entry.Nonce),
		strings.ToLower(entry.BlockHash),
		int64(entry.TransactionIndex),
		strings.ToLower(entry.From),
		nullableString(entry.To),
		defaultZero(entry.Value),
		defaultZero(entry.Gas),
		defaultZero(entry.GasPrice),
		boolToInt(entry.IsError),
		boolToInt(entry.TxReceiptStatus),
		entry.Input,
		nullableString(entry.ContractAddress),
		defaultZero(entry.CumulativeGasUsed),
		defaultZero(entry.GasUsed),
		int64(entry.Confirmations),
		entry.MethodID,
		entry.FunctionName,
	}
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var (
			entry                   domain.Transaction
			timestamp, nonce, index int64
			confirmations           int64
			isError, status         int64
			to, contract            sql.NullString
		)
		if err := rows.Scan(
			&entry.BlockNumber,
			&timestamp,
			&entry.Hash,
			&nonce,
			&entry.BlockHash,
			&index,
			&entry.From,
			&to,
			&entry.Value,
			&entry.Gas,
			&entry.GasPrice,
			&isError,
			&status,
			&entry.Input,
			&contract,
			&entry.CumulativeGasUsed,
			&entry.GasUsed,
			&confirmations,
			&entry.MethodID,
			&entry.FunctionName,
		); err != nil {
			return nil, err
		}
		entry.TimeStamp = time.Unix(timestamp, 0).UTC()
		entry.Nonce = uint64(nonce)
		entry.TransactionIndex = uint64(index)
		entry.Confirmations = uint64(confirmations)
		entry.IsError = isError != 0
		entry.TxReceiptStatus = status != 0
		if to.Valid {
			entry.To = &to.String
		}
		if contract.Valid {
			entry.ContractAddress = &contract.String
		}
		transactions = append(transactions, entry)
	}
	return transactions, rows.Err()
}

func nullableString(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return strings.ToLower(*value)
}

func defaultZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
