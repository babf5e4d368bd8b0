package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type ConstituentStore interface {
	UpsertConstituents(ctx context.Context, organizationID string, batch []donor.Constituent, updateExisting bool) (created, updated int, err error)
}

// ProcessConstituents applies a validated mapping to raw rows and upserts
// canonical constituents in batches. A row that fails validation is recorded
// and skipped; only store failures abort the run.
func ProcessConstituents(ctx context.Context, store ConstituentStore, organizationID string, rows []map[string]string, mapping donor.FieldMapping, opts ProcessorOptions) (ProcessResult, error) {
	result := ProcessResult{}
	total := len(rows)
	batch := make([]donor.Constituent, 0, opts.batchSize())
	processed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		created, updated, err := store.UpsertConstituents(ctx, organizationID, batch, opts.UpdateExisting)
		if err != nil {
			return fmt.Errorf("upsert constituents: %w", err)
		}
		result.Created += created
		result.Updated += updated
		batch = batch[:0]
		opts.reportProgress(processed, total)
		return nil
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rowNum := i + 1
		processed = rowNum

		constituent, rowErr := buildConstituent(organizationID, applyMapping(row, mapping))
		if rowErr != nil {
			result.addRowError(rowNum, rowErr.field, rowErr.message)
			continue
		}

		batch = append(batch, constituent)
		if len(batch) >= opts.batchSize() {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}
	opts.reportProgress(total, total)
	return result, nil
}

type fieldError struct {
	field   string
	message string
}

func (e *fieldError) Error() string { return e.field + ": " + e.message }

func buildConstituent(organizationID string, fields map[string]string) (donor.Constituent, *fieldError) {
	constituent := donor.Constituent{
		OrganizationID:    organizationID,
		ExternalID:        fields["constituent_id"],
		Prefix:            fields["prefix"],
		FirstName:         fields["first_name"],
		MiddleName:        fields["middle_name"],
		LastName:          fields["last_name"],
		Suffix:            fields["suffix"],
		Email:             strings.ToLower(strings.TrimSpace(fields["email"])),
		Phone:             fields["phone"],
		AddressLine1:      fields["address_line1"],
		AddressLine2:      fields["address_line2"],
		City:              fields["city"],
		State:             fields["state"],
		PostalCode:        fields["postal_code"],
		Country:           fields["country"],
		ConstituentType:   strings.ToLower(fields["constituent_type"]),
		SchoolCollege:     fields["school_college"],
		CapacitySource:    fields["capacity_source"],
		AssignedOfficerID: fields["assigned_officer_id"],
		PortfolioTier:     strings.ToLower(fields["portfolio_tier"]),
		IsActive:          true,
	}

	// Without an external id the row is still importable: the email becomes
	// the natural key for upsert matching.
	if constituent.ExternalID == "" {
		constituent.ExternalID = constituent.Email
	}

	if raw := fields["class_year"]; raw != "" {
		year, err := parseClassYear(raw)
		if err != nil {
			return donor.Constituent{}, &fieldError{field: "class_year", message: err.Error()}
		}
		constituent.ClassYear = year
	}

	if raw := fields["estimated_capacity"]; raw != "" {
		capacity, err := parseAmount(raw)
		if err != nil {
			return donor.Constituent{}, &fieldError{field: "estimated_capacity", message: err.Error()}
		}
		constituent.EstimatedCapacity = capacity
	}

	if err := constituent.Validate(); err != nil {
		return donor.Constituent{}, &fieldError{field: validationField(err), message: err.Error()}
	}
	return constituent, nil
}

func validationField(err error) string {
	switch err {
	case donor.ErrMissingLastName:
		return "last_name"
	case donor.ErrInvalidEmail:
		return "email"
	case donor.ErrMissingExternalID:
		return "constituent_id"
	}
	return ""
}
