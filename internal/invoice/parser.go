package invoice

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel defaults used only by the regex fallback path to mark "no
// pattern matched" for display fields.
const (
	SentinelText   = "UNKNOWN"
	SentinelAmount = 0.0
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")

	// First balanced brace-delimited object, supporting one level of
	// nested braces.
	braceObjectRe = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice Number[:\s]*([^\n\r]+)`),
		regexp.MustCompile(`(?i)Invoice[:\s]*#?([0-9A-Za-z\-]+)`),
		regexp.MustCompile(`(?i)Invoice ID[:\s]*([^\n\r]+)`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice Date[:\s]*([^\n\r]+)`),
		regexp.MustCompile(`(?i)Date[:\s]*([0-9]{1,2}[-/][0-9]{1,2}[-/][0-9]{2,4})`),
		regexp.MustCompile(`(?i)Date[:\s]*([0-9]{1,2}-[A-Za-z]{3}-[0-9]{2,4})`),
	}
	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Vendor Name[:\s]*([^\n\r]+)`),
		regexp.MustCompile(`(?i)Company[:\s]*([^\n\r]+)`),
		regexp.MustCompile(`(?i)From[:\s]*([^\n\r]+)`),
	}
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Total Amount[:\s]*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)Total[:\s]*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)Amount[:\s]*([0-9,]+\.?[0-9]*)`),
	}
	currencyPattern = regexp.MustCompile(`(?i)Currency[:\s]*([A-Za-z]{3})`)
)

// ParseModelResponse extracts an InvoiceData record from raw model output.
// The layered fallback chain tries, in order: a fenced JSON code block, the
// first balanced brace object in the text, and finally regex field
// extraction. A successful structured-JSON parse short-circuits the chain,
// including a deliberate all-null object. The fallback result is valid only
// if at least one pattern matched; otherwise the whole parse fails with
// ErrInvalidModelResponse.
func ParseModelResponse(text string) (*InvoiceData, error) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if data, err := decodeInvoiceJSON(strings.TrimSpace(m[1])); err == nil {
			return data, nil
		}
	}

	if m := braceObjectRe.FindString(text); m != "" {
		if data, err := decodeInvoiceJSON(strings.TrimSpace(m)); err == nil {
			return data, nil
		}
	}

	if data := extractFallbackData(text); data != nil {
		return data, nil
	}

	return nil, fmt.Errorf("%w: no JSON object found and fallback extraction matched nothing", ErrInvalidModelResponse)
}

// decodeInvoiceJSON parses candidate JSON into the typed record. A value
// that fails type coercion (a string where a number belongs) rejects the
// candidate rather than being silently accepted.
func decodeInvoiceJSON(candidate string) (*InvoiceData, error) {
	var data InvoiceData
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func extractFallbackData(text string) *InvoiceData {
	matched := 0

	firstMatch := func(patterns []*regexp.Regexp) string {
		for _, p := range patterns {
			if m := p.FindStringSubmatch(text); m != nil {
				matched++
				return strings.TrimSpace(m[1])
			}
		}
		return ""
	}

	number := firstMatch(invoiceNumberPatterns)
	date := firstMatch(datePatterns)
	vendor := firstMatch(vendorPatterns)

	amount := SentinelAmount
	for _, p := range totalPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		amount = v
		matched++
		break
	}

	currency := "USD"
	if m := currencyPattern.FindStringSubmatch(text); m != nil {
		currency = strings.ToUpper(m[1])
		matched++
	}

	if matched == 0 {
		return nil
	}

	if number == "" {
		number = SentinelText
	}
	if date == "" {
		date = SentinelText
	}
	if vendor == "" {
		vendor = SentinelText
	}

	return &InvoiceData{
		InvoiceNumber: &number,
		Date:          &date,
		VendorName:    &vendor,
		TotalAmount:   &amount,
		Currency:      &currency,
		LineItems:     []LineItem{},
	}
}
