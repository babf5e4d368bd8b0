package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/givemetry/advancement/internal/domain/donor"
)

const defaultBatchSize = 100

type ProcessorOptions struct {
	BatchSize      int
	UpdateExisting bool
	OnProgress     func(processed, total int)
}

func (o ProcessorOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return defaultBatchSize
	}
	return o.BatchSize
}

func (o ProcessorOptions) reportProgress(processed, total int) {
	if o.OnProgress != nil {
		o.OnProgress(processed, total)
	}
}

type ProcessResult struct {
	Created int
	Updated int
	Errors  []donor.RowError
}

func (r *ProcessResult) addRowError(row int, field, message string) {
	r.Errors = append(r.Errors, donor.RowError{Row: row, Field: field, Message: message})
}

// applyMapping projects a raw CSV row onto canonical field names. Columns
// mapped to an empty target are ignored.
func applyMapping(row map[string]string, mapping donor.FieldMapping) map[string]string {
	mapped := make(map[string]string, len(mapping))
	for column, field := range mapping {
		if field == "" {
			continue
		}
		if value, ok := row[column]; ok {
			mapped[field] = value
		}
	}
	return mapped
}

// parseAmount coerces money-ish strings: "$1,250.00", "1250", "(500)".
func parseAmount(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.Trim(s, "()")
	}
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", value)
	}
	return d, nil
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func parseClassYear(value string) (*int, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil, nil
	}
	// "Class of 1998" and bare "1998" both appear in alumni exports.
	if t, ok := ParseDate(s, DateOptions{AllowPartial: true}); ok {
		year := t.Year()
		return &year, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 2100 {
		return nil, fmt.Errorf("invalid class year %q", value)
	}
	return &year, nil
}
