package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type FileStore interface {
	GetFileContents(ctx context.Context, path string) ([]byte, error)
}

type EntityStore interface {
	ConstituentStore
	GiftStore
	ContactStore
}

type uploadJobRepo interface {
	ClaimNext(ctx context.Context) (*donor.UploadJob, error)
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
	SaveFieldMapping(ctx context.Context, jobID string, mapping donor.FieldMapping) error
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	Finish(ctx context.Context, jobID string, result donor.UploadResult) error
}

// AnalysisTrigger is the fire-and-forget hook into the analysis refresh
// worker. Implementations must never block the caller.
type AnalysisTrigger interface {
	TriggerAnalysis(organizationID string)
}

type UploadWorkerConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	StaleJobThreshold time.Duration
	UpdateExisting    bool
}

type UploadWorker struct {
	repo     uploadJobRepo
	files    FileStore
	entities EntityStore
	audit    donor.AuditSink
	analysis AnalysisTrigger
	log      logrus.FieldLogger
	cfg      UploadWorkerConfig

	once sync.Once
}

func NewUploadWorker(repo uploadJobRepo, files FileStore, entities EntityStore, audit donor.AuditSink, analysis AnalysisTrigger, log logrus.FieldLogger, cfg UploadWorkerConfig) *UploadWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.StaleJobThreshold <= 0 {
		cfg.StaleJobThreshold = 30 * time.Minute
	}

	return &UploadWorker{
		repo:     repo,
		files:    files,
		entities: entities,
		audit:    audit,
		analysis: analysis,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches the polling loop. The loop claims at most one job at a time
// and runs it to completion before polling again; exclusivity across worker
// instances comes from the conditional-update claim, not from any lock here.
func (w *UploadWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		go w.loop(ctx)
	})
}

func (w *UploadWorker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if requeued, err := w.repo.RequeueStale(ctx, w.cfg.StaleJobThreshold); err != nil {
			w.log.WithError(err).Warn("requeue stale upload jobs failed")
		} else if requeued > 0 {
			w.log.WithField("count", requeued).Warn("requeued stale upload jobs")
		}

		job, err := w.repo.ClaimNext(ctx)
		if err != nil {
			w.log.WithError(err).Error("claim next upload job failed")
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if job == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		w.ProcessJob(ctx, *job)
	}
}

// ProcessJob runs a claimed job through the full pipeline. It never returns
// an error: every failure mode ends in a terminal job status so one bad job
// cannot take the loop down.
func (w *UploadWorker) ProcessJob(ctx context.Context, job donor.UploadJob) {
	log := w.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"org_id":    job.OrganizationID,
		"filename":  job.Filename,
		"data_type": job.DataType,
	})
	log.Info("processing upload job")

	result, err := w.runPipeline(ctx, &job, log)
	if err != nil {
		// On shutdown the job stays in processing; the staleness sweep will
		// requeue it instead of marking it failed.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("upload job interrupted by shutdown")
			return
		}
		w.forceFail(ctx, job, result, err, log)
		return
	}

	result.Status = donor.FinalUploadStatus(result.ErrorCount, result.RowCount)
	if err := w.repo.Finish(ctx, job.ID, result); err != nil {
		log.WithError(err).Error("persist final job status failed")
		return
	}

	w.recordAudit(ctx, job, result, log)
	log.WithFields(logrus.Fields{
		"status":    result.Status,
		"rows":      result.RowCount,
		"processed": result.ProcessedCount,
		"errors":    result.ErrorCount,
	}).Info("upload job finished")

	if result.Status == donor.UploadCompleted || result.Status == donor.UploadCompletedWithErrors {
		w.analysis.TriggerAnalysis(job.OrganizationID)
	}
}

func (w *UploadWorker) runPipeline(ctx context.Context, job *donor.UploadJob, log logrus.FieldLogger) (result donor.UploadResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing upload job: %v", r)
		}
	}()

	collected := newErrorCollector()

	data, err := w.files.GetFileContents(ctx, job.StoragePath)
	if err != nil {
		return result, fmt.Errorf("read upload content: %w", err)
	}

	parsed, err := ParseRows(data)
	if err != nil {
		return result, fmt.Errorf("parse csv: %w", err)
	}
	result.RowCount = len(parsed.Rows)

	// Structural warnings are reported on the job but do not abort it.
	for _, warning := range parsed.Warnings {
		collected.add(warning)
	}
	if len(parsed.Rows) == 0 {
		collected.add(donor.RowError{Message: ErrNoDataRows.Error()})
	}

	mapping := job.FieldMapping
	if len(mapping) == 0 {
		suggestion, suggestErr := SuggestFieldMapping(parsed.Headers, job.DataType)
		if suggestErr != nil {
			return w.snapshot(result, collected), suggestErr
		}
		mapping = suggestion.FieldMapping()
		if saveErr := w.repo.SaveFieldMapping(ctx, job.ID, mapping); saveErr != nil {
			return w.snapshot(result, collected), fmt.Errorf("persist detected field mapping: %w", saveErr)
		}
		log.WithField("mapped_columns", len(mapping)).Info("auto-detected field mapping")
	}

	validation := ValidateFieldMapping(mapping, job.DataType)
	if !validation.Valid {
		for _, mappingErr := range validation.Errors {
			collected.add(donor.RowError{Field: mappingErr.Field, Message: mappingErr.Type + ": " + mappingErr.Message})
		}
		return w.snapshot(result, collected), errors.New("field mapping does not cover required fields")
	}

	if err := w.repo.UpdateProgress(ctx, job.ID, 10); err != nil {
		log.WithError(err).Warn("progress update failed")
	}

	opts := ProcessorOptions{
		BatchSize:      w.cfg.BatchSize,
		UpdateExisting: w.cfg.UpdateExisting,
		OnProgress: func(processed, total int) {
			if total == 0 {
				return
			}
			progress := 10 + int(math.Round(85*float64(processed)/float64(total)))
			if err := w.repo.UpdateProgress(ctx, job.ID, progress); err != nil {
				log.WithError(err).Warn("progress update failed")
			}
		},
	}

	var processed ProcessResult
	switch job.DataType {
	case donor.DataTypeConstituents:
		processed, err = ProcessConstituents(ctx, w.entities, job.OrganizationID, parsed.Rows, mapping, opts)
	case donor.DataTypeGifts:
		processed, err = ProcessGifts(ctx, w.entities, job.OrganizationID, parsed.Rows, mapping, opts)
	case donor.DataTypeContacts:
		processed, err = ProcessContacts(ctx, w.entities, job.OrganizationID, parsed.Rows, mapping, opts)
	default:
		err = donor.ErrUnknownDataType
	}
	if err != nil {
		return w.snapshot(result, collected), err
	}

	for _, rowErr := range processed.Errors {
		collected.add(rowErr)
	}

	result.ProcessedCount = processed.Created + processed.Updated
	return w.snapshot(result, collected), nil
}

func (w *UploadWorker) snapshot(result donor.UploadResult, collected *errorCollector) donor.UploadResult {
	result.ErrorCount = collected.count
	result.Errors = collected.stored
	return result
}

// forceFail is the single catch-all: whatever was collected so far is
// persisted, one generic error entry carries the failure message, and the
// job lands in failed.
func (w *UploadWorker) forceFail(ctx context.Context, job donor.UploadJob, result donor.UploadResult, cause error, log logrus.FieldLogger) {
	log.WithError(cause).Error("upload job failed")

	result.Status = donor.UploadFailed
	result.Errors = append(result.Errors, donor.RowError{Message: cause.Error()})
	result.ErrorCount++

	if err := w.repo.Finish(ctx, job.ID, result); err != nil {
		log.WithError(err).Error("persist failed job status failed")
	}
	w.recordAudit(ctx, job, result, log)
}

func (w *UploadWorker) recordAudit(ctx context.Context, job donor.UploadJob, result donor.UploadResult, log logrus.FieldLogger) {
	err := w.audit.Record(ctx, donor.AuditEntry{
		OrganizationID: job.OrganizationID,
		UserID:         job.UserID,
		Action:         "upload." + string(result.Status),
		ResourceType:   "upload",
		ResourceID:     job.ID,
		Details: map[string]any{
			"filename":        job.Filename,
			"data_type":       string(job.DataType),
			"row_count":       result.RowCount,
			"processed_count": result.ProcessedCount,
			"error_count":     result.ErrorCount,
		},
	})
	if err != nil {
		log.WithError(err).Warn("audit entry failed")
	}
}

// errorCollector keeps the stored error list bounded while tracking the true
// count separately.
type errorCollector struct {
	stored []donor.RowError
	count  int
}

func newErrorCollector() *errorCollector {
	return &errorCollector{}
}

func (c *errorCollector) add(err donor.RowError) {
	c.count++
	if len(c.stored) < donor.MaxStoredRowErrors {
		c.stored = append(c.stored, err)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
