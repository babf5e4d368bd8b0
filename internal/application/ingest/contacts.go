package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type ContactStore interface {
	ResolveConstituents(ctx context.Context, organizationID string, externalIDs []string) (map[string]string, error)
	UpsertContacts(ctx context.Context, organizationID string, batch []donor.Contact, updateExisting bool) (created, updated int, err error)
}

type pendingContact struct {
	row        int
	externalID string
	contact    donor.Contact
}

// ProcessContacts mirrors ProcessGifts for contact-report rows.
func ProcessContacts(ctx context.Context, store ContactStore, organizationID string, rows []map[string]string, mapping donor.FieldMapping, opts ProcessorOptions) (ProcessResult, error) {
	result := ProcessResult{}
	total := len(rows)
	batch := make([]pendingContact, 0, opts.batchSize())
	processed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, 0, len(batch))
		seen := make(map[string]bool, len(batch))
		for _, pending := range batch {
			if !seen[pending.externalID] {
				seen[pending.externalID] = true
				ids = append(ids, pending.externalID)
			}
		}

		resolved, unresolvedErrs, err := resolveBatchLinks(ctx, store, organizationID, ids)
		if err != nil {
			return err
		}

		contacts := make([]donor.Contact, 0, len(batch))
		for _, pending := range batch {
			constituentID, ok := resolved[pending.externalID]
			if !ok {
				result.addRowError(pending.row, "constituent_id", unresolvedErrs[pending.externalID])
				continue
			}
			pending.contact.ConstituentID = constituentID
			contacts = append(contacts, pending.contact)
		}

		if len(contacts) > 0 {
			created, updated, err := store.UpsertContacts(ctx, organizationID, contacts, opts.UpdateExisting)
			if err != nil {
				return fmt.Errorf("upsert contacts: %w", err)
			}
			result.Created += created
			result.Updated += updated
		}

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

		pending, rowErr := buildContact(organizationID, applyMapping(row, mapping))
		if rowErr != nil {
			result.addRowError(rowNum, rowErr.field, rowErr.message)
			continue
		}
		pending.row = rowNum

		batch = append(batch, pending)
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

func buildContact(organizationID string, fields map[string]string) (pendingContact, *fieldError) {
	externalID := fields["constituent_id"]
	if externalID == "" {
		return pendingContact{}, &fieldError{field: "constituent_id", message: donor.ErrMissingConstituentLink.Error()}
	}

	contactDate, ok := ParseDate(fields["contact_date"], DateOptions{AllowExcelSerial: true})
	if !ok {
		return pendingContact{}, &fieldError{field: "contact_date", message: fmt.Sprintf("unparseable date %q", fields["contact_date"])}
	}

	contactType := strings.ToLower(strings.TrimSpace(fields["contact_type"]))
	if contactType == "" {
		return pendingContact{}, &fieldError{field: "contact_type", message: donor.ErrMissingContactType.Error()}
	}

	contact := donor.Contact{
		OrganizationID: organizationID,
		ExternalID:     fields["contact_id"],
		ContactDate:    contactDate,
		ContactType:    contactType,
		Subject:        fields["subject"],
		Notes:          fields["notes"],
		Outcome:        normalizeOutcome(fields["outcome"]),
		NextAction:     fields["next_action"],
	}

	if raw := fields["next_action_date"]; raw != "" {
		if t, ok := ParseDate(raw, DateOptions{}); ok {
			contact.NextActionDate = &t
		}
		// An unparseable follow-up date is not worth failing the row over.
	}

	return pendingContact{externalID: externalID, contact: contact}, nil
}

func normalizeOutcome(value string) donor.ContactOutcome {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "positive", "good", "success":
		return donor.OutcomePositive
	case "negative", "bad", "declined":
		return donor.OutcomeNegative
	case "no_response", "no response", "none":
		return donor.OutcomeNoResponse
	default:
		return donor.OutcomeNeutral
	}
}
