package ingest

import (
	"context"
	"fmt"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type GiftStore interface {
	// ResolveConstituents maps external constituent ids to internal ids
	// within one organization. Unknown ids are simply absent from the result.
	ResolveConstituents(ctx context.Context, organizationID string, externalIDs []string) (map[string]string, error)
	UpsertGifts(ctx context.Context, organizationID string, batch []donor.Gift, updateExisting bool) (created, updated int, err error)
}

type pendingGift struct {
	row        int
	externalID string
	gift       donor.Gift
}

// ProcessGifts transforms mapped rows into gifts, resolves each gift's
// constituent link within the organization, and upserts in batches. Rows
// referencing an unknown constituent are recorded as row errors, not dropped
// silently.
func ProcessGifts(ctx context.Context, store GiftStore, organizationID string, rows []map[string]string, mapping donor.FieldMapping, opts ProcessorOptions) (ProcessResult, error) {
	result := ProcessResult{}
	total := len(rows)
	batch := make([]pendingGift, 0, opts.batchSize())
	processed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resolved, unresolvedErrs, err := resolveBatchLinks(ctx, store, organizationID, batchLinks(batch))
		if err != nil {
			return err
		}

		gifts := make([]donor.Gift, 0, len(batch))
		for _, pending := range batch {
			constituentID, ok := resolved[pending.externalID]
			if !ok {
				result.addRowError(pending.row, "constituent_id", unresolvedErrs[pending.externalID])
				continue
			}
			pending.gift.ConstituentID = constituentID
			gifts = append(gifts, pending.gift)
		}

		if len(gifts) > 0 {
			created, updated, err := store.UpsertGifts(ctx, organizationID, gifts, opts.UpdateExisting)
			if err != nil {
				return fmt.Errorf("upsert gifts: %w", err)
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

		pending, rowErr := buildGift(organizationID, applyMapping(row, mapping))
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

func buildGift(organizationID string, fields map[string]string) (pendingGift, *fieldError) {
	externalID := fields["constituent_id"]
	if externalID == "" {
		return pendingGift{}, &fieldError{field: "constituent_id", message: donor.ErrMissingConstituentLink.Error()}
	}

	amount, err := parseAmount(fields["amount"])
	if err != nil {
		return pendingGift{}, &fieldError{field: "amount", message: err.Error()}
	}
	if !amount.IsPositive() {
		return pendingGift{}, &fieldError{field: "amount", message: donor.ErrInvalidGiftAmount.Error()}
	}

	giftDate, ok := ParseDate(fields["gift_date"], DateOptions{AllowExcelSerial: true})
	if !ok {
		return pendingGift{}, &fieldError{field: "gift_date", message: fmt.Sprintf("unparseable date %q", fields["gift_date"])}
	}

	gift := donor.Gift{
		OrganizationID:  organizationID,
		ExternalID:      fields["gift_id"],
		Amount:          amount,
		GiftDate:        giftDate,
		GiftType:        fields["gift_type"],
		FundName:        fields["fund_name"],
		FundCode:        fields["fund_code"],
		Campaign:        fields["campaign"],
		Appeal:          fields["appeal"],
		IsAnonymous:     parseFlag(fields["is_anonymous"]),
		IsMatching:      parseFlag(fields["is_matching"]),
		MatchingCompany: fields["matching_company"],
		TributeType:     fields["tribute_type"],
		TributeName:     fields["tribute_name"],
	}

	gift.RecognitionAmount = amount
	if raw := fields["recognition_amount"]; raw != "" {
		recognition, err := parseAmount(raw)
		if err != nil {
			return pendingGift{}, &fieldError{field: "recognition_amount", message: err.Error()}
		}
		gift.RecognitionAmount = recognition
	}

	return pendingGift{externalID: externalID, gift: gift}, nil
}

type linkResolver interface {
	ResolveConstituents(ctx context.Context, organizationID string, externalIDs []string) (map[string]string, error)
}

func batchLinks(batch []pendingGift) []string {
	seen := make(map[string]bool, len(batch))
	ids := make([]string, 0, len(batch))
	for _, pending := range batch {
		if !seen[pending.externalID] {
			seen[pending.externalID] = true
			ids = append(ids, pending.externalID)
		}
	}
	return ids
}

func resolveBatchLinks(ctx context.Context, resolver linkResolver, organizationID string, externalIDs []string) (map[string]string, map[string]string, error) {
	resolved, err := resolver.ResolveConstituents(ctx, organizationID, externalIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve constituents: %w", err)
	}

	unresolved := make(map[string]string)
	for _, id := range externalIDs {
		if _, ok := resolved[id]; !ok {
			unresolved[id] = fmt.Sprintf("no constituent with id %q in organization", id)
		}
	}
	return resolved, unresolved, nil
}
