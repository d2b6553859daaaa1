package invoice

import (
	"encoding/json"
	"errors"
	"testing"
)

const fencedResponse = "Here is the extracted data:\n```json\n" + `{
    "invoice_number": "INV-2024-001",
    "date": "2024-01-15",
    "due_date": null,
    "vendor_name": "ABC Company Ltd",
    "vendor_address": null,
    "customer_name": null,
    "customer_address": null,
    "total_amount": 1250.00,
    "tax_amount": 125.00,
    "subtotal": 1125.00,
    "currency": "USD",
    "payment_terms": "Net 30",
    "notes": null,
    "line_items": [
        {"description": "Product A", "quantity": 2, "unit_price": 500.00, "total": 1000.00}
    ]
}` + "\n```\nLet me know if you need anything else."

func TestParseModelResponse_FencedBlock(t *testing.T) {
	data, err := ParseModelResponse(fencedResponse)
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}

	if data.InvoiceNumber == nil || *data.InvoiceNumber != "INV-2024-001" {
		t.Errorf("invoice_number = %v, want INV-2024-001", data.InvoiceNumber)
	}
	if data.TotalAmount == nil || *data.TotalAmount != 1250.00 {
		t.Errorf("total_amount = %v, want 1250.00", data.TotalAmount)
	}
	if data.DueDate != nil {
		t.Errorf("due_date = %v, want nil", *data.DueDate)
	}
	if len(data.LineItems) != 1 {
		t.Fatalf("line_items count = %d, want 1", len(data.LineItems))
	}
	if data.LineItems[0].Quantity == nil || *data.LineItems[0].Quantity != 2 {
		t.Errorf("line item quantity = %v, want 2", data.LineItems[0].Quantity)
	}
}

func TestParseModelResponse_BraceObjectInProse(t *testing.T) {
	text := `The invoice details are as follows: {"invoice_number": "A-9", "total_amount": 42.50, "line_items": [{"description": "widget"}]} — extraction complete.`

	data, err := ParseModelResponse(text)
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if data.InvoiceNumber == nil || *data.InvoiceNumber != "A-9" {
		t.Errorf("invoice_number = %v, want A-9", data.InvoiceNumber)
	}
	if data.TotalAmount == nil || *data.TotalAmount != 42.50 {
		t.Errorf("total_amount = %v, want 42.50", data.TotalAmount)
	}
}

func TestParseModelResponse_AllNullJSONIsSuccess(t *testing.T) {
	text := "```json\n{\"invoice_number\": null, \"total_amount\": null}\n```"

	data, err := ParseModelResponse(text)
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v, want success for explicit nulls", err)
	}
	if data.InvoiceNumber != nil || data.TotalAmount != nil {
		t.Errorf("expected nil fields, got %+v", data)
	}
}

func TestParseModelResponse_FallbackExtraction(t *testing.T) {
	text := "I could not produce JSON, but here is what I read.\nInvoice Number: INV-77\nTotal: 450.00\n"

	data, err := ParseModelResponse(text)
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if data.InvoiceNumber == nil || *data.InvoiceNumber != "INV-77" {
		t.Errorf("invoice_number = %v, want INV-77", data.InvoiceNumber)
	}
	if data.TotalAmount == nil || *data.TotalAmount != 450.0 {
		t.Errorf("total_amount = %v, want 450.0", data.TotalAmount)
	}
	if data.VendorName == nil || *data.VendorName != SentinelText {
		t.Errorf("vendor_name = %v, want sentinel %q", data.VendorName, SentinelText)
	}
}

func TestParseModelResponse_FallbackThousandsSeparator(t *testing.T) {
	data, err := ParseModelResponse("Total Amount: 1,234,567.89")
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if data.TotalAmount == nil || *data.TotalAmount != 1234567.89 {
		t.Errorf("total_amount = %v, want 1234567.89", data.TotalAmount)
	}
}

func TestParseModelResponse_Currency(t *testing.T) {
	data, err := ParseModelResponse("Invoice Number: X-1\ncurrency: eur")
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if data.Currency == nil || *data.Currency != "EUR" {
		t.Errorf("currency = %v, want EUR", data.Currency)
	}
}

func TestParseModelResponse_PureNoiseFails(t *testing.T) {
	_, err := ParseModelResponse("the weather is nice today and nothing resembles a bill")
	if err == nil {
		t.Fatal("ParseModelResponse() = nil error, want failure")
	}
	if !errors.Is(err, ErrInvalidModelResponse) {
		t.Errorf("error = %v, want ErrInvalidModelResponse", err)
	}
}

func TestParseModelResponse_MalformedJSONFallsBack(t *testing.T) {
	// Broken fencing content, but the prose still carries fields.
	text := "```json\n{\"invoice_number\": \"INV-5\",\n```\nInvoice Number: INV-5\nTotal: 10.00"

	data, err := ParseModelResponse(text)
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if data.InvoiceNumber == nil || *data.InvoiceNumber != "INV-5" {
		t.Errorf("invoice_number = %v, want INV-5", data.InvoiceNumber)
	}
}

func TestParseModelResponse_TypeMismatchRejected(t *testing.T) {
	// total_amount as a string must not be silently coerced; the candidate
	// is rejected and the fallback path takes over.
	text := `{"invoice_number": "INV-3", "total_amount": "a lot"}` + "\nInvoice Number: INV-3\nTotal: 99.00"

	data, err := ParseModelResponse(text)
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if data.TotalAmount == nil || *data.TotalAmount != 99.0 {
		t.Errorf("total_amount = %v, want fallback 99.0", data.TotalAmount)
	}
}

func TestInvoiceData_JSONRoundTrip(t *testing.T) {
	number := "INV-2024-001"
	total := 1250.0
	desc := "Product A"
	qty := 2.0

	original := InvoiceData{
		InvoiceNumber: &number,
		TotalAmount:   &total,
		LineItems:     []LineItem{{Description: &desc, Quantity: &qty}},
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var reloaded InvoiceData
	if err := json.Unmarshal(raw, &reloaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if *reloaded.InvoiceNumber != number || *reloaded.TotalAmount != total {
		t.Errorf("round trip mismatch: %+v", reloaded)
	}
	if reloaded.VendorName != nil {
		t.Errorf("absent field came back non-nil: %v", *reloaded.VendorName)
	}
	if len(reloaded.LineItems) != 1 || *reloaded.LineItems[0].Description != desc {
		t.Errorf("line items round trip mismatch: %+v", reloaded.LineItems)
	}
}
