package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/givemetry/advancement/internal/application/analysis"
	"github.com/givemetry/advancement/internal/domain/donor"
)

// AnalysisRepository serves the refresh worker: finding stale tenants,
// cursor-paging constituents, bulk-loading score inputs, and writing
// predictions in batches.
type AnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

// FindOrganizationNeedingRefresh applies the two-tier priority: a tenant
// with a completed upload in the last hour and scores older than that upload
// beats the background sweep of anything unscored for over a day.
func (r *AnalysisRepository) FindOrganizationNeedingRefresh(ctx context.Context) (string, error) {
	var organizationID string

	err := r.pool.QueryRow(ctx, `
SELECT u.organization_id
FROM upload_jobs u
JOIN organizations o ON o.id = u.organization_id AND o.is_active
WHERE u.status IN ('completed', 'completed_with_errors')
  AND u.completed_at > NOW() - INTERVAL '1 hour'
  AND EXISTS (
    SELECT 1 FROM constituents c
    WHERE c.organization_id = u.organization_id
      AND c.is_active
      AND (c.scored_at IS NULL OR c.scored_at < u.completed_at)
  )
ORDER BY u.completed_at DESC
LIMIT 1`).Scan(&organizationID)
	if err == nil {
		return organizationID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("find recently uploaded organization: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
SELECT c.organization_id
FROM constituents c
JOIN organizations o ON o.id = c.organization_id AND o.is_active
WHERE c.is_active
  AND (c.scored_at IS NULL OR c.scored_at < NOW() - INTERVAL '24 hours')
ORDER BY c.scored_at ASC NULLS FIRST
LIMIT 1`).Scan(&organizationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find stale organization: %w", err)
	}
	return organizationID, nil
}

func (r *AnalysisRepository) CountActiveConstituents(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM constituents WHERE organization_id = $1 AND is_active`,
		organizationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active constituents: %w", err)
	}
	return count, nil
}

func (r *AnalysisRepository) ListActiveConstituents(ctx context.Context, organizationID, afterID string, limit int) ([]analysis.ConstituentRef, error) {
	// The first page passes an empty cursor, which cannot be cast to uuid.
	rows, err := r.pool.Query(ctx, `
SELECT id, COALESCE(estimated_capacity, 0)::float8
FROM constituents
WHERE organization_id = $1 AND is_active AND ($2 = '' OR id > $2::uuid)
ORDER BY id ASC
LIMIT $3`, organizationID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active constituents: %w", err)
	}
	defer rows.Close()

	var page []analysis.ConstituentRef
	for rows.Next() {
		var ref analysis.ConstituentRef
		if err := rows.Scan(&ref.ID, &ref.EstimatedCapacity); err != nil {
			return nil, fmt.Errorf("scan constituent ref: %w", err)
		}
		page = append(page, ref)
	}
	return page, rows.Err()
}

func (r *AnalysisRepository) LoadHistories(ctx context.Context, organizationID string, constituentIDs []string) (map[string][]donor.GiftHistory, map[string][]donor.ContactHistory, error) {
	gifts := make(map[string][]donor.GiftHistory, len(constituentIDs))
	contacts := make(map[string][]donor.ContactHistory, len(constituentIDs))
	if len(constituentIDs) == 0 {
		return gifts, contacts, nil
	}

	giftRows, err := r.pool.Query(ctx, `
SELECT constituent_id, amount::float8, gift_date
FROM gifts
WHERE organization_id = $1 AND constituent_id = ANY($2)
ORDER BY gift_date ASC`, organizationID, constituentIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load gift histories: %w", err)
	}
	defer giftRows.Close()

	for giftRows.Next() {
		var constituentID string
		var history donor.GiftHistory
		if err := giftRows.Scan(&constituentID, &history.Amount, &history.GiftDate); err != nil {
			return nil, nil, fmt.Errorf("scan gift history: %w", err)
		}
		gifts[constituentID] = append(gifts[constituentID], history)
	}
	if err := giftRows.Err(); err != nil {
		return nil, nil, err
	}

	contactRows, err := r.pool.Query(ctx, `
SELECT constituent_id, contact_date, contact_type, outcome
FROM contacts
WHERE organization_id = $1 AND constituent_id = ANY($2)
ORDER BY contact_date ASC`, organizationID, constituentIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load contact histories: %w", err)
	}
	defer contactRows.Close()

	for contactRows.Next() {
		var constituentID, outcome string
		var history donor.ContactHistory
		if err := contactRows.Scan(&constituentID, &history.ContactDate, &history.ContactType, &outcome); err != nil {
			return nil, nil, fmt.Errorf("scan contact history: %w", err)
		}
		history.Outcome = donor.ContactOutcome(outcome)
		contacts[constituentID] = append(contacts[constituentID], history)
	}
	return gifts, contacts, contactRows.Err()
}

// StoreBatchPredictions writes one page of scores in a single transaction:
// an update per constituent plus an append-only history row, batched into
// one round trip.
func (r *AnalysisRepository) StoreBatchPredictions(ctx context.Context, organizationID string, predictions []donor.ConstituentPrediction, scoredAt time.Time) error {
	if len(predictions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range predictions {
		factors, err := json.Marshal(p.LapseRisk.Factors)
		if err != nil {
			return fmt.Errorf("encode factors for %s: %w", p.ConstituentID, err)
		}

		batch.Queue(`
UPDATE constituents
SET lapse_risk_score = $1, lapse_risk_factors = $2, priority_score = $3, scored_at = $4, updated_at = NOW()
WHERE id = $5 AND organization_id = $6`,
			p.LapseRisk.Score, string(factors), p.PriorityScore, scoredAt, p.ConstituentID, organizationID)

		batch.Queue(`
INSERT INTO prediction_history (id, organization_id, constituent_id, score, factors, scored_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), organizationID, p.ConstituentID, p.LapseRisk.Score, string(factors), scoredAt)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store predictions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit predictions: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) MarkOrganizationAnalyzed(ctx context.Context, organizationID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE organizations SET last_analyzed_at = $1, updated_at = NOW() WHERE id = $2`,
		at, organizationID,
	)
	if err != nil {
		return fmt.Errorf("mark organization analyzed: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetConstituentHistory(ctx context.Context, organizationID, constituentID string) ([]donor.GiftHistory, []donor.ContactHistory, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM constituents WHERE id = $1 AND organization_id = $2)`,
		constituentID, organizationID,
	).Scan(&exists)
	if err != nil {
		return nil, nil, fmt.Errorf("check constituent: %w", err)
	}
	if !exists {
		return nil, nil, donor.ErrConstituentNotFound
	}

	gifts, contacts, err := r.LoadHistories(ctx, organizationID, []string{constituentID})
	if err != nil {
		return nil, nil, err
	}
	return gifts[constituentID], contacts[constituentID], nil
}
