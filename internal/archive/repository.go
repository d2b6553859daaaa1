package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

// Repository stores terminal processing results.
type Repository interface {
	Save(ctx context.Context, r *invoice.ProcessingResult) error
	LoadRecent(ctx context.Context, limit int) ([]*invoice.ProcessingResult, error)
	Delete(ctx context.Context, fileID string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or replaces a result by file id.
func (r *SQLiteRepository) Save(ctx context.Context, res *invoice.ProcessingResult) error {
	var dataJSON sql.NullString
	if res.InvoiceData != nil {
		raw, err := json.Marshal(res.InvoiceData)
		if err != nil {
			return err
		}
		dataJSON = sql.NullString{String: string(raw), Valid: true}
	}

	var procTime sql.NullFloat64
	if res.ProcessingTime != nil {
		procTime = sql.NullFloat64{Float64: *res.ProcessingTime, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO results (file_id, original_filename, processed_filename, status, invoice_data, error_message, processing_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			processed_filename = excluded.processed_filename,
			status = excluded.status,
			invoice_data = excluded.invoice_data,
			error_message = excluded.error_message,
			processing_time = excluded.processing_time,
			updated_at = excluded.updated_at
	`, res.FileID, res.OriginalFilename, res.ProcessedFilename, res.Status, dataJSON, res.ErrorMessage,
		procTime, res.CreatedAt.Format(time.RFC3339Nano), res.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// LoadRecent returns up to limit archived results, newest first.
func (r *SQLiteRepository) LoadRecent(ctx context.Context, limit int) ([]*invoice.ProcessingResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT file_id, original_filename, processed_filename, status, invoice_data, error_message, processing_time, created_at, updated_at
		FROM results ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*invoice.ProcessingResult
	for rows.Next() {
		var res invoice.ProcessingResult
		var dataJSON sql.NullString
		var procTime sql.NullFloat64
		var createdAt, updatedAt string

		if err := rows.Scan(&res.FileID, &res.OriginalFilename, &res.ProcessedFilename, &res.Status,
			&dataJSON, &res.ErrorMessage, &procTime, &createdAt, &updatedAt); err != nil {
			return nil, err
		}

		if dataJSON.Valid {
			var data invoice.InvoiceData
			if err := json.Unmarshal([]byte(dataJSON.String), &data); err == nil {
				res.InvoiceData = &data
			}
		}
		if procTime.Valid {
			t := procTime.Float64
			res.ProcessingTime = &t
		}
		res.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		res.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

		results = append(results, &res)
	}
	return results, rows.Err()
}

// Delete removes an archived result. Deleting an unknown id is not an
// error; the in-memory store is the authority on existence.
func (r *SQLiteRepository) Delete(ctx context.Context, fileID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM results WHERE file_id = ?`, fileID)
	return err
}
