package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/givemetry/advancement/internal/domain/donor"
)

var (
	ErrEmptyFile       = errors.New("empty file: no header row found")
	ErrUndecodableFile = errors.New("file content is not valid UTF-8")
	ErrNoDataRows      = errors.New("file contains a header row but no data rows")
	errBlankHeader     = errors.New("header row is blank")
)

type ParseResult struct {
	Headers  []string
	Rows     []map[string]string
	Warnings []donor.RowError
}

// ParseRows parses CSV bytes into header-keyed row maps. Rows with a
// mismatched column count are padded or truncated to the header width and a
// warning is recorded; rows the csv reader cannot parse at all are skipped
// with a warning. Only structural problems at the file level return an error.
func ParseRows(data []byte) (*ParseResult, error) {
	data = stripBOM(data)
	if !utf8.Valid(data) {
		return nil, ErrUndecodableFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header row: %w", err)
	}

	blank := true
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
		if headers[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, errBlankHeader
	}

	result := &ParseResult{Headers: headers}
	rowNum := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			result.Warnings = append(result.Warnings, donor.RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("unparseable row: %v", err),
			})
			continue
		}

		if len(record) != len(headers) {
			result.Warnings = append(result.Warnings, donor.RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("expected %d columns, got %d", len(headers), len(record)),
			})
		}

		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// DetectColumns returns the trimmed header row of a CSV payload.
func DetectColumns(data []byte) ([]string, error) {
	result, err := ParseRows(data)
	if err != nil {
		return nil, err
	}
	return result.Headers, nil
}

type StructureValidation struct {
	IsValid bool
	Errors  []donor.RowError
}

// ValidateStructure checks file-level sanity: decodable content, a non-empty
// header row, and at least one data row. Row-shape inconsistencies are
// reported but leave the file valid; they are handled per-row downstream.
func ValidateStructure(data []byte) StructureValidation {
	result, err := ParseRows(data)
	if err != nil {
		return StructureValidation{
			IsValid: false,
			Errors:  []donor.RowError{{Message: err.Error()}},
		}
	}

	v := StructureValidation{IsValid: true, Errors: result.Warnings}
	if len(result.Rows) == 0 {
		v.IsValid = false
		v.Errors = append(v.Errors, donor.RowError{Message: ErrNoDataRows.Error()})
	}
	return v
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
