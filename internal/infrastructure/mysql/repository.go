package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"chainnotes/internal/application"
	"chainnotes/internal/domain"

	driver "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const errDuplicateEntry = 1062

const transactionColumns = `block_number, time_stamp, hash, nonce, block_hash, transaction_index, from_addr, to_addr, value, gas, gas_price,
	is_error, txreceipt_status, input, contract_address, cumulative_gas_used, gas_used, confirmations, method_id, function_name`

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// tableOptions gives every key column a binary collation so labels differing
// only in case or accents are distinct, matching the SQLite backend.
const tableOptions = ` ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transaction_snapshots (
		user_id VARCHAR(64) NOT NULL,
		address VARCHAR(128) NOT NULL,
		tx_count INT UNSIGNED NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, address)
	)` + tableOptions,
	`CREATE TABLE IF NOT EXISTS snapshot_transactions (
		user_id VARCHAR(64) NOT NULL,
		address VARCHAR(128) NOT NULL,
		position INT UNSIGNED NOT NULL,
		block_number VARCHAR(32) NOT NULL,
		time_stamp BIGINT NOT NULL,
		hash VARCHAR(66) NOT NULL,
		nonce BIGINT UNSIGNED NOT NULL,
		block_hash VARCHAR(66) NOT NULL,
		transaction_index BIGINT UNSIGNED NOT NULL,
		from_addr VARCHAR(42) NOT NULL,
		to_addr VARCHAR(42) NULL,
		value VARCHAR(80) NOT NULL,
		gas VARCHAR(32) NOT NULL,
		gas_price VARCHAR(80) NOT NULL,
		is_error TINYINT(1) NOT NULL,
		txreceipt_status TINYINT(1) NOT NULL,
		input MEDIUMTEXT NOT NULL,
		contract_address VARCHAR(42) NULL,
		cumulative_gas_used VARCHAR(32) NOT NULL,
		gas_used VARCHAR(32) NOT NULL,
		confirmations BIGINT UNSIGNED NOT NULL,
		method_id VARCHAR(66) NOT NULL,
		function_name TEXT NOT NULL,
		PRIMARY KEY (user_id, address, position),
		UNIQUE KEY snapshot_tx_hash (user_id, address, hash),
		KEY snapshot_tx_time_idx (user_id, address, time_stamp)
	)` + tableOptions,
	`CREATE TABLE IF NOT EXISTS text_labels (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id VARCHAR(64) NOT NULL,
		label VARCHAR(255) NOT NULL,
		cid VARCHAR(128) NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY text_labels_user_label (user_id, label),
		KEY text_labels_cid_idx (cid)
	)` + tableOptions,
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceSnapshot swaps the stored batch for (user, address) inside one transaction,
// so readers see either the previous batch or the new one.
func (r *Repository) ReplaceSnapshot(ctx context.Context, snapshot domain.TransactionSnapshot) error {
	ctx, span := startDBSpan(ctx, "mysql.ReplaceSnapshot",
		attribute.String("address", snapshot.Address),
		attribute.Int("tx.count", len(snapshot.Transactions)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		recordSpanError(span, err)
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_transactions WHERE user_id = ? AND address = ?`, snapshot.UserID, snapshot.Address); err != nil {
		_ = tx.Rollback()
		recordSpanError(span, err)
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO transaction_snapshots (user_id, address, tx_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			tx_count = VALUES(tx_count),
			updated_at = VALUES(updated_at)`,
		snapshot.UserID, snapshot.Address, len(snapshot.Transactions), snapshot.CreatedAt.UnixMilli(), snapshot.UpdatedAt.UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		recordSpanError(span, err)
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_transactions (user_id, address, position, `+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		recordSpanError(span, err)
		return err
	}
	defer stmt.Close()

	for i, entry := range snapshot.Transactions {
		args := append([]any{snapshot.UserID, snapshot.Address, i}, transactionArgs(entry)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			recordSpanError(span, err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		recordSpanError(span, err)
		return err
	}
	return nil
}

func (r *Repository) QuerySnapshotTransactions(ctx context.Context, filter application.SnapshotQueryFilter) ([]domain.Transaction, error) {
	ctx, span := startDBSpan(ctx, "mysql.QuerySnapshotTransactions", attribute.String("address", filter.Address))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM snapshot_transactions
		WHERE user_id = ? AND address = ? AND time_stamp >= ? AND time_stamp <= ?
		ORDER BY position ASC`,
		filter.UserID, filter.Address, filter.FromUnix(), filter.ToUnix(),
	)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer rows.Close()

	transactions, err := scanTransactions(rows)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return transactions, nil
}

// GetSnapshot loads the stored batch for (user, address).
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
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transaction_snapshots WHERE user_id = ? AND address = ?`, userID, address).Scan(&count)
	return count, err
}

func (r *Repository) FindLabel(ctx context.Context, userID, label string) (domain.LabeledText, bool, error) {
	ctx, span := startDBSpan(ctx, "mysql.FindLabel")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	entry := domain.LabeledText{UserID: userID, Label: label}
	var createdAt int64
	if err := r.db.QueryRowContext(ctx, `SELECT cid, created_at FROM text_labels WHERE user_id = ? AND label = ?`, userID, label).
		Scan(&entry.CID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LabeledText{}, false, nil
		}
		recordSpanError(span, err)
		return domain.LabeledText{}, false, err
	}
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	return entry, true, nil
}

// SaveLabel inserts the mapping. A second mapping for the same (user, label) fails with domain.ErrLabelExists.
func (r *Repository) SaveLabel(ctx context.Context, entry domain.LabeledText) error {
	ctx, span := startDBSpan(ctx, "mysql.SaveLabel", attribute.String("content.cid", entry.CID))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO text_labels (user_id, label, cid, created_at) VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.Label, entry.CID, entry.CreatedAt.UnixMilli())
	if err != nil {
		var mysqlErr *driver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			return domain.ErrLabelExists
		}
		recordSpanError(span, err)
		return err
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
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
		entry.Nonce,
		strings.ToLower(entry.BlockHash),
		entry.TransactionIndex,
		strings.ToLower(entry.From),
		nullableString(entry.To),
		defaultZero(entry.Value),
		defaultZero(entry.Gas),
		defaultZero(entry.GasPrice),
		entry.IsError,
		entry.TxReceiptStatus,
		entry.Input,
		nullableString(entry.ContractAddress),
		defaultZero(entry.CumulativeGasUsed),
		defaultZero(entry.GasUsed),
		entry.Confirmations,
		entry.MethodID,
		entry.FunctionName,
	}
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var (
			entry           domain.Transaction
			timestamp       int64
			to, contract    sql.NullString
			isError, status bool
		)
		if err := rows.Scan(
			&entry.BlockNumber,
			&timestamp,
			&entry.Hash,
			&entry.Nonce,
			&entry.BlockHash,
			&entry.TransactionIndex,
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
			&entry.Confirmations,
			&entry.MethodID,
			&entry.FunctionName,
		); err != nil {
			return nil, err
		}
		entry.TimeStamp = time.Unix(timestamp, 0).UTC()
		entry.IsError = isError
		entry.TxReceiptStatus = status
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

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("chainnotes/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
