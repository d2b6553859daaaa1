// Package invoice defines the domain model for the invoice processing
// pipeline: extracted invoice data, per-file processing results, aggregate
// statistics, and the filename/id helpers shared across the agent.
package invoice

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusRetry      = "retry"
)

// LineItem is a single invoice line. All fields are optional; a nil pointer
// means the model did not report the value.
type LineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`
}

// InvoiceData is the structured record extracted from one invoice.
// Absence of a field means "not found", not an error.
type InvoiceData struct {
	InvoiceNumber   *string    `json:"invoice_number"`
	Date            *string    `json:"date"`
	DueDate         *string    `json:"due_date"`
	VendorName      *string    `json:"vendor_name"`
	VendorAddress   *string    `json:"vendor_address"`
	CustomerName    *string    `json:"customer_name"`
	CustomerAddress *string    `json:"customer_address"`
	TotalAmount     *float64   `json:"total_amount"`
	TaxAmount       *float64   `json:"tax_amount"`
	Subtotal        *float64   `json:"subtotal"`
	Currency        *string    `json:"currency"`
	PaymentTerms    *string    `json:"payment_terms"`
	Notes           *string    `json:"notes"`
	LineItems       []LineItem `json:"line_items"`
}

// ProcessingResult tracks one file through the pipeline. It is created in
// the processing state when a file is accepted; the processor mutates its
// own record and republishes each transition through the store. Status
// moves forward only: processing -> success|failed, except when a caller
// forces a reprocess.
type ProcessingResult struct {
	FileID            string       `json:"file_id"`
	OriginalFilename  string       `json:"original_filename"`
	ProcessedFilename string       `json:"processed_filename"`
	Status            string       `json:"status"`
	InvoiceData       *InvoiceData `json:"invoice_data,omitempty"`
	ErrorMessage      string       `json:"error_message,omitempty"`
	ProcessingTime    *float64     `json:"processing_time,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// IsTerminal reports whether no further automatic transition occurs.
func (r *ProcessingResult) IsTerminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// SystemStats are aggregate counters derived from the result store.
// They are recomputed on read and never independently persisted.
type SystemStats struct {
	TotalProcessed        int     `json:"total_processed"`
	Successful            int     `json:"successful"`
	Failed                int     `json:"failed"`
	Pending               int     `json:"pending"`
	Processing            int     `json:"processing"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	Uptime                string  `json:"uptime,omitempty"`
}

// NewFileID derives an opaque 16-character token from the filename, the
// current timestamp and a random component. Unique per call, never
// reproducible from the same inputs.
func NewFileID(filename string) string {
	seed := fmt.Sprintf("%s_%s_%s", filename, time.Now().UTC().Format(time.RFC3339Nano), uuid.NewString())
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
