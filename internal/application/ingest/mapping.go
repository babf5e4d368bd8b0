package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/givemetry/advancement/internal/domain/donor"
)

// Canonical field sets per data type. Required fields gate whether a job may
// run at all; everything else is optional enrichment.
var requiredFields = map[donor.DataType][]string{
	donor.DataTypeConstituents: {"last_name"},
	donor.DataTypeGifts:        {"constituent_id", "amount", "gift_date"},
	donor.DataTypeContacts:     {"constituent_id", "contact_date", "contact_type"},
}

var optionalFields = map[donor.DataType][]string{
	donor.DataTypeConstituents: {
		"constituent_id", "prefix", "first_name", "middle_name", "suffix",
		"email", "phone", "address_line1", "address_line2", "city", "state",
		"postal_code", "country", "constituent_type", "class_year",
		"school_college", "estimated_capacity", "capacity_source",
		"assigned_officer_id", "portfolio_tier",
	},
	donor.DataTypeGifts: {
		"gift_id", "gift_type", "fund_name", "fund_code", "campaign", "appeal",
		"recognition_amount", "is_anonymous", "is_matching", "matching_company",
		"tribute_type", "tribute_name",
	},
	donor.DataTypeContacts: {
		"contact_id", "subject", "notes", "outcome", "next_action",
		"next_action_date",
	},
}

// synonyms maps normalized header names to canonical fields for headers that
// do not literally spell the canonical name. Built from the column spellings
// seen across real CRM exports (Raiser's Edge, Salesforce, spreadsheets).
var synonyms = map[donor.DataType]map[string]string{
	donor.DataTypeConstituents: {
		"id":             "constituent_id",
		"donorid":        "constituent_id",
		"constituentno":  "constituent_id",
		"recordid":       "constituent_id",
		"name":           "last_name",
		"fullname":       "last_name",
		"lastname":       "last_name",
		"surname":        "last_name",
		"firstname":      "first_name",
		"givenname":      "first_name",
		"middlename":     "middle_name",
		"emailaddress":   "email",
		"mail":           "email",
		"phonenumber":    "phone",
		"telephone":      "phone",
		"homephone":      "phone",
		"address1":       "address_line1",
		"streetaddress":  "address_line1",
		"street":         "address_line1",
		"address2":       "address_line2",
		"zip":            "postal_code",
		"zipcode":        "postal_code",
		"postcode":       "postal_code",
		"type":           "constituent_type",
		"donortype":      "constituent_type",
		"gradyear":       "class_year",
		"graduationyear": "class_year",
		"yeargraduated":  "class_year",
		"school":         "school_college",
		"college":        "school_college",
		"capacity":       "estimated_capacity",
		"capacityrating": "estimated_capacity",
		"wealthrating":   "estimated_capacity",
		"officer":        "assigned_officer_id",
		"giftofficer":    "assigned_officer_id",
		"solicitor":      "assigned_officer_id",
		"tier":           "portfolio_tier",
		"portfolio":      "portfolio_tier",
	},
	donor.DataTypeGifts: {
		"id":            "gift_id",
		"giftno":        "gift_id",
		"transactionid": "gift_id",
		"donorid":       "constituent_id",
		"constituentno": "constituent_id",
		"giftamount":    "amount",
		"amt":           "amount",
		"total":         "amount",
		"date":          "gift_date",
		"dategiven":     "gift_date",
		"posteddate":    "gift_date",
		"type":          "gift_type",
		"paymenttype":   "gift_type",
		"fund":          "fund_name",
		"designation":   "fund_name",
		"anonymous":     "is_anonymous",
		"matching":      "is_matching",
		"matchcompany":  "matching_company",
	},
	donor.DataTypeContacts: {
		"id":            "contact_id",
		"donorid":       "constituent_id",
		"constituentno": "constituent_id",
		"date":          "contact_date",
		"activitydate":  "contact_date",
		"type":          "contact_type",
		"activitytype":  "contact_type",
		"method":        "contact_type",
		"description":   "subject",
		"summary":       "subject",
		"note":          "notes",
		"comments":      "notes",
		"result":        "outcome",
		"response":      "outcome",
		"followup":      "next_action",
		"followupdate":  "next_action_date",
	},
}

const (
	confidenceExact     = 1.0
	confidenceSynonym   = 0.9
	confidenceSubstring = 0.6
	confidenceFloor     = 0.5
)

type FieldSuggestion struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
}

type MappingSuggestion struct {
	Mapping  map[string]FieldSuggestion `json:"mapping"`
	Unmapped []string                   `json:"unmapped"`
	Required []string                   `json:"required"`
	Optional []string                   `json:"optional"`
}

// FieldMapping flattens a suggestion into the sourceColumn -> canonicalField
// form persisted on the upload job.
func (s MappingSuggestion) FieldMapping() donor.FieldMapping {
	mapping := make(donor.FieldMapping, len(s.Mapping))
	for column, suggestion := range s.Mapping {
		mapping[column] = suggestion.Field
	}
	return mapping
}

// SuggestFieldMapping scores each source column against the canonical fields
// of the target data type. Exact canonical spellings win over known synonyms,
// which win over substring matches; columns that never clear the confidence
// floor are reported as unmapped. A canonical field is assigned at most once,
// first matching column wins.
func SuggestFieldMapping(columns []string, dataType donor.DataType) (MappingSuggestion, error) {
	required, ok := requiredFields[dataType]
	if !ok {
		return MappingSuggestion{}, donor.ErrUnknownDataType
	}
	optional := optionalFields[dataType]

	canonical := make(map[string]string, len(required)+len(optional))
	for _, field := range append(append([]string{}, required...), optional...) {
		canonical[normalizeHeader(field)] = field
	}

	suggestion := MappingSuggestion{
		Mapping:  make(map[string]FieldSuggestion),
		Required: required,
		Optional: optional,
	}
	taken := make(map[string]bool)

	for _, column := range columns {
		normalized := normalizeHeader(column)
		if normalized == "" {
			suggestion.Unmapped = append(suggestion.Unmapped, column)
			continue
		}

		field, confidence := matchColumn(normalized, dataType, canonical)
		if field == "" || confidence < confidenceFloor || taken[field] {
			suggestion.Unmapped = append(suggestion.Unmapped, column)
			continue
		}

		suggestion.Mapping[column] = FieldSuggestion{Field: field, Confidence: confidence}
		taken[field] = true
	}

	return suggestion, nil
}

func matchColumn(normalized string, dataType donor.DataType, canonical map[string]string) (string, float64) {
	if field, ok := canonical[normalized]; ok {
		return field, confidenceExact
	}
	if field, ok := synonyms[dataType][normalized]; ok {
		return field, confidenceSynonym
	}

	// Substring pass: a header like "donor email address" still carries the
	// canonical token. Longer canonical names are tried first so
	// "contact_date" beats "contact_type" only on a real token match.
	bestField := ""
	bestLen := 0
	for key, field := range canonical {
		if len(key) > 3 && strings.Contains(normalized, key) && len(key) > bestLen {
			bestField = field
			bestLen = len(key)
		}
	}
	if bestField != "" {
		return bestField, confidenceSubstring
	}
	return "", 0
}

type MappingError struct {
	Field   string `json:"field"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type MappingValidation struct {
	Valid  bool
	Errors []MappingError
}

// ValidateFieldMapping checks required-field coverage only: the mapping is
// valid iff every required field for the data type has at least one source
// column mapped to it.
func ValidateFieldMapping(mapping donor.FieldMapping, dataType donor.DataType) MappingValidation {
	required, ok := requiredFields[dataType]
	if !ok {
		return MappingValidation{Errors: []MappingError{{
			Type:    "unknown_data_type",
			Message: string(dataType) + " is not a known data type",
		}}}
	}

	covered := make(map[string]bool, len(mapping))
	for _, field := range mapping {
		covered[field] = true
	}

	validation := MappingValidation{Valid: true}
	for _, field := range required {
		if !covered[field] {
			validation.Valid = false
			validation.Errors = append(validation.Errors, MappingError{
				Field:   field,
				Type:    "missing_required_field",
				Message: "no source column is mapped to required field " + field,
			})
		}
	}
	return validation
}

// normalizeHeader lowercases, strips diacritics, and removes separators so
// "Class Year", "class_year" and "CLASS-YEAR" all compare equal.
func normalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case ' ', '_', '-', '.', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
