package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/givemetry/advancement/internal/application/scoring"
	"github.com/givemetry/advancement/internal/domain/donor"
)

// ConstituentRef is the cursor-page projection the refresh worker iterates:
// just enough to score and prioritize without loading whole rows.
type ConstituentRef struct {
	ID                string
	EstimatedCapacity float64
}

type analysisRepo interface {
	// FindOrganizationNeedingRefresh returns "" when every tenant is fresh.
	// Tenants with a recently completed upload and stale scores come first;
	// a background sweep catches anything unscored for over a day.
	FindOrganizationNeedingRefresh(ctx context.Context) (string, error)
	CountActiveConstituents(ctx context.Context, organizationID string) (int, error)
	// ListActiveConstituents pages by ascending constituent id, returning
	// rows strictly after the cursor.
	ListActiveConstituents(ctx context.Context, organizationID, afterID string, limit int) ([]ConstituentRef, error)
	LoadHistories(ctx context.Context, organizationID string, constituentIDs []string) (map[string][]donor.GiftHistory, map[string][]donor.ContactHistory, error)
	StoreBatchPredictions(ctx context.Context, organizationID string, predictions []donor.ConstituentPrediction, scoredAt time.Time) error
	MarkOrganizationAnalyzed(ctx context.Context, organizationID string, at time.Time) error
	GetConstituentHistory(ctx context.Context, organizationID, constituentID string) ([]donor.GiftHistory, []donor.ContactHistory, error)
}

type RefreshConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

type RefreshWorker struct {
	repo  analysisRepo
	audit donor.AuditSink
	log   logrus.FieldLogger
	cfg   RefreshConfig

	trigger chan string
	once    sync.Once
}

func NewRefreshWorker(repo analysisRepo, audit donor.AuditSink, log logrus.FieldLogger, cfg RefreshConfig) *RefreshWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &RefreshWorker{
		repo:    repo,
		audit:   audit,
		log:     log,
		cfg:     cfg,
		trigger: make(chan string, 16),
	}
}

// TriggerAnalysis signals that an organization's data changed. It never
// blocks: when the buffer is full the signal is dropped and the periodic
// staleness sweep picks the tenant up instead.
func (w *RefreshWorker) TriggerAnalysis(organizationID string) {
	select {
	case w.trigger <- organizationID:
	default:
		w.log.WithField("org_id", organizationID).Warn("analysis trigger buffer full, deferring to sweep")
	}
}

func (w *RefreshWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		go w.loop(ctx)
	})
}

func (w *RefreshWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case organizationID := <-w.trigger:
			w.runLogged(ctx, organizationID)
		case <-ticker.C:
			organizationID, err := w.repo.FindOrganizationNeedingRefresh(ctx)
			if err != nil {
				w.log.WithError(err).Error("find organization needing refresh failed")
				continue
			}
			if organizationID == "" {
				continue
			}
			w.runLogged(ctx, organizationID)
		}
	}
}

func (w *RefreshWorker) runLogged(ctx context.Context, organizationID string) {
	if err := w.RunAnalysisForOrganization(ctx, organizationID); err != nil {
		w.log.WithError(err).WithField("org_id", organizationID).Error("analysis run failed")
	}
}

// RunAnalysisForOrganization rescores every active constituent in the
// tenant, cursor-paginated, writing one batched prediction store call per
// page. Re-running over unchanged data yields identical scores, so overlap
// with a prior run is harmless.
func (w *RefreshWorker) RunAnalysisForOrganization(ctx context.Context, organizationID string) error {
	log := w.log.WithField("org_id", organizationID)
	started := time.Now()
	asOf := started.UTC()

	total, err := w.repo.CountActiveConstituents(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("count active constituents: %w", err)
	}

	processed := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := w.repo.ListActiveConstituents(ctx, organizationID, cursor, w.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list constituents after %q: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}

		ids := make([]string, len(page))
		for i, ref := range page {
			ids[i] = ref.ID
		}

		gifts, contacts, err := w.repo.LoadHistories(ctx, organizationID, ids)
		if err != nil {
			return fmt.Errorf("load histories: %w", err)
		}

		predictions := make([]donor.ConstituentPrediction, 0, len(page))
		for _, ref := range page {
			risk := scoring.CalculateLapseRisk(scoring.Input{
				Gifts:    gifts[ref.ID],
				Contacts: contacts[ref.ID],
				AsOf:     asOf,
			})
			predictions = append(predictions, donor.ConstituentPrediction{
				ConstituentID: ref.ID,
				LapseRisk:     risk,
				PriorityScore: scoring.CalculatePriority(risk.Score, ref.EstimatedCapacity),
			})
		}

		if err := w.repo.StoreBatchPredictions(ctx, organizationID, predictions, asOf); err != nil {
			return fmt.Errorf("store predictions: %w", err)
		}

		processed += len(page)
		cursor = page[len(page)-1].ID
		log.WithFields(logrus.Fields{"processed": processed, "total": total}).Info("analysis progress")
	}

	if err := w.repo.MarkOrganizationAnalyzed(ctx, organizationID, asOf); err != nil {
		return fmt.Errorf("mark organization analyzed: %w", err)
	}

	duration := time.Since(started)
	if err := w.audit.Record(ctx, donor.AuditEntry{
		OrganizationID: organizationID,
		Action:         "analysis.completed",
		ResourceType:   "organization",
		ResourceID:     organizationID,
		Details: map[string]any{
			"constituents_scored": processed,
			"duration_ms":         duration.Milliseconds(),
		},
	}); err != nil {
		log.WithError(err).Warn("audit entry failed")
	}

	log.WithFields(logrus.Fields{"scored": processed, "duration": duration}).Info("analysis run complete")
	return nil
}

// CalculateConstituentLapseRisk is the on-demand path used when a single
// profile is viewed. It shares CalculateLapseRisk with the batch run, so the
// dashboard and the background sweep can never disagree about the same data.
func (w *RefreshWorker) CalculateConstituentLapseRisk(ctx context.Context, organizationID, constituentID string) (donor.Prediction, error) {
	gifts, contacts, err := w.repo.GetConstituentHistory(ctx, organizationID, constituentID)
	if err != nil {
		return donor.Prediction{}, err
	}

	return scoring.CalculateLapseRisk(scoring.Input{
		Gifts:    gifts,
		Contacts: contacts,
		AsOf:     time.Now().UTC(),
	}), nil
}
