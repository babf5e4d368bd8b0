package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemetry/advancement/internal/domain/donor"
)

func TestSuggestFieldMappingConstituents(t *testing.T) {
	t.Parallel()

	suggestion, err := SuggestFieldMapping([]string{"Name", "Email", "Class Year"}, donor.DataTypeConstituents)
	require.NoError(t, err)

	require.Contains(t, suggestion.Mapping, "Name")
	assert.Equal(t, "last_name", suggestion.Mapping["Name"].Field)
	assert.GreaterOrEqual(t, suggestion.Mapping["Name"].Confidence, 0.9)

	require.Contains(t, suggestion.Mapping, "Email")
	assert.Equal(t, "email", suggestion.Mapping["Email"].Field)
	assert.Equal(t, 1.0, suggestion.Mapping["Email"].Confidence)

	require.Contains(t, suggestion.Mapping, "Class Year")
	assert.Equal(t, "class_year", suggestion.Mapping["Class Year"].Field)
	assert.Equal(t, 1.0, suggestion.Mapping["Class Year"].Confidence)

	validation := ValidateFieldMapping(suggestion.FieldMapping(), donor.DataTypeConstituents)
	assert.True(t, validation.Valid)
}

func TestSuggestFieldMappingSynonymsAndSubstrings(t *testing.T) {
	t.Parallel()

	suggestion, err := SuggestFieldMapping(
		[]string{"Donor ID", "Gift Amount", "Date Given", "Fund", "Mystery Column"},
		donor.DataTypeGifts,
	)
	require.NoError(t, err)

	assert.Equal(t, "constituent_id", suggestion.Mapping["Donor ID"].Field)
	assert.Equal(t, "amount", suggestion.Mapping["Gift Amount"].Field)
	assert.Equal(t, "gift_date", suggestion.Mapping["Date Given"].Field)
	assert.Equal(t, "fund_name", suggestion.Mapping["Fund"].Field)
	assert.Contains(t, suggestion.Unmapped, "Mystery Column")
}

func TestSuggestFieldMappingFirstColumnWinsPerField(t *testing.T) {
	t.Parallel()

	suggestion, err := SuggestFieldMapping([]string{"Email", "Email Address"}, donor.DataTypeConstituents)
	require.NoError(t, err)

	assert.Equal(t, "email", suggestion.Mapping["Email"].Field)
	assert.NotContains(t, suggestion.Mapping, "Email Address")
	assert.Contains(t, suggestion.Unmapped, "Email Address")
}

func TestSuggestFieldMappingUnknownDataType(t *testing.T) {
	t.Parallel()

	_, err := SuggestFieldMapping([]string{"a"}, donor.DataType("pledges"))
	assert.ErrorIs(t, err, donor.ErrUnknownDataType)
}

func TestValidateFieldMappingMissingRequired(t *testing.T) {
	t.Parallel()

	mapping := donor.FieldMapping{
		"Donor ID":   "constituent_id",
		"Date Given": "gift_date",
	}

	validation := ValidateFieldMapping(mapping, donor.DataTypeGifts)
	require.False(t, validation.Valid)
	require.Len(t, validation.Errors, 1)
	assert.Equal(t, "amount", validation.Errors[0].Field)
	assert.Equal(t, "missing_required_field", validation.Errors[0].Type)
}

func TestValidateFieldMappingIgnoredColumnsDoNotCount(t *testing.T) {
	t.Parallel()

	mapping := donor.FieldMapping{
		"ID":     "constituent_id",
		"When":   "contact_date",
		"How":    "contact_type",
		"Extra":  "",
		"Extra2": "",
	}

	validation := ValidateFieldMapping(mapping, donor.DataTypeContacts)
	assert.True(t, validation.Valid)
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "classyear", normalizeHeader("Class Year"))
	assert.Equal(t, "classyear", normalizeHeader("CLASS_YEAR"))
	assert.Equal(t, "classyear", normalizeHeader("class-year"))
	assert.Equal(t, "resume", normalizeHeader("Résumé"))
}
