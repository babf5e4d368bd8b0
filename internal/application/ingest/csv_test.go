package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRowsBasic(t *testing.T) {
	t.Parallel()

	data := []byte("Name,Email,Class Year\nSmith,smith@example.edu,1998\nJones,jones@example.edu,2005\n")

	result, err := ParseRows(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Email", "Class Year"}, result.Headers)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Smith", result.Rows[0]["Name"])
	assert.Equal(t, "jones@example.edu", result.Rows[1]["Email"])
	assert.Empty(t, result.Warnings)
}

func TestParseRowsStripsBOMAndWhitespace(t *testing.T) {
	t.Parallel()

	data := []byte("\xEF\xBB\xBFName , Email\n  Smith ,smith@example.edu \n")

	result, err := ParseRows(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Email"}, result.Headers)
	assert.Equal(t, "Smith", result.Rows[0]["Name"])
	assert.Equal(t, "smith@example.edu", result.Rows[0]["Email"])
}

func TestParseRowsPadsShortRows(t *testing.T) {
	t.Parallel()

	data := []byte("a,b,c\n1,2\n")

	result, err := ParseRows(data)
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "1", result.Rows[0]["a"])
	assert.Equal(t, "", result.Rows[0]["c"])
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 1, result.Warnings[0].Row)
	assert.Contains(t, result.Warnings[0].Message, "expected 3 columns, got 2")
}

func TestParseRowsTruncatesLongRows(t *testing.T) {
	t.Parallel()

	data := []byte("a,b\n1,2,3,4\n")

	result, err := ParseRows(data)
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, result.Rows[0])
	require.Len(t, result.Warnings, 1)
}

func TestParseRowsQuotedFieldsWithCommas(t *testing.T) {
	t.Parallel()

	data := []byte("name,address\n\"Smith, Jane\",\"12 Elm St, Apt 4\"\n")

	result, err := ParseRows(data)
	require.NoError(t, err)

	assert.Equal(t, "Smith, Jane", result.Rows[0]["name"])
	assert.Equal(t, "12 Elm St, Apt 4", result.Rows[0]["address"])
}

func TestParseRowsEmptyFile(t *testing.T) {
	t.Parallel()

	_, err := ParseRows(nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = ParseRows([]byte("\xEF\xBB\xBF"))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseRowsBlankHeader(t *testing.T) {
	t.Parallel()

	_, err := ParseRows([]byte(",,\n1,2,3\n"))
	assert.ErrorIs(t, err, errBlankHeader)
}

func TestParseRowsInvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := ParseRows([]byte{'a', ',', 'b', '\n', 0xFF, 0xFE, ',', 'x', '\n'})
	assert.ErrorIs(t, err, ErrUndecodableFile)
}

func TestDetectColumns(t *testing.T) {
	t.Parallel()

	columns, err := DetectColumns([]byte("Donor ID,Gift Amount,Date Given\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Donor ID", "Gift Amount", "Date Given"}, columns)
}

func TestValidateStructure(t *testing.T) {
	t.Parallel()

	valid := ValidateStructure([]byte("a,b\n1,2\n"))
	assert.True(t, valid.IsValid)
	assert.Empty(t, valid.Errors)

	headerOnly := ValidateStructure([]byte("a,b\n"))
	assert.False(t, headerOnly.IsValid)
	require.NotEmpty(t, headerOnly.Errors)
	assert.Contains(t, headerOnly.Errors[0].Message, "no data rows")

	empty := ValidateStructure(nil)
	assert.False(t, empty.IsValid)

	ragged := ValidateStructure([]byte("a,b\n1\n2,3\n"))
	assert.True(t, ragged.IsValid)
	assert.Len(t, ragged.Errors, 1)
}
