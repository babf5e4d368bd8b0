package analysis

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type fakeAnalysisRepo struct {
	constituents []ConstituentRef
	gifts        map[string][]donor.GiftHistory
	contacts     map[string][]donor.ContactHistory

	mu          sync.Mutex
	listCalls   int
	stored      [][]donor.ConstituentPrediction
	analyzedAt  *time.Time
	analyzedOrg string
}

func (f *fakeAnalysisRepo) analyzedOrganization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzedOrg
}

func (f *fakeAnalysisRepo) FindOrganizationNeedingRefresh(context.Context) (string, error) {
	return "", nil
}

func (f *fakeAnalysisRepo) CountActiveConstituents(context.Context, string) (int, error) {
	return len(f.constituents), nil
}

func (f *fakeAnalysisRepo) ListActiveConstituents(_ context.Context, _ string, afterID string, limit int) ([]ConstituentRef, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	sorted := make([]ConstituentRef, len(f.constituents))
	copy(sorted, f.constituents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	page := make([]ConstituentRef, 0, limit)
	for _, ref := range sorted {
		if ref.ID <= afterID {
			continue
		}
		page = append(page, ref)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeAnalysisRepo) LoadHistories(_ context.Context, _ string, ids []string) (map[string][]donor.GiftHistory, map[string][]donor.ContactHistory, error) {
	gifts := make(map[string][]donor.GiftHistory)
	contacts := make(map[string][]donor.ContactHistory)
	for _, id := range ids {
		gifts[id] = f.gifts[id]
		contacts[id] = f.contacts[id]
	}
	return gifts, contacts, nil
}

func (f *fakeAnalysisRepo) StoreBatchPredictions(_ context.Context, _ string, predictions []donor.ConstituentPrediction, _ time.Time) error {
	copied := make([]donor.ConstituentPrediction, len(predictions))
	copy(copied, predictions)
	f.mu.Lock()
	f.stored = append(f.stored, copied)
	f.mu.Unlock()
	return nil
}

func (f *fakeAnalysisRepo) MarkOrganizationAnalyzed(_ context.Context, organizationID string, at time.Time) error {
	f.mu.Lock()
	f.analyzedOrg = organizationID
	f.analyzedAt = &at
	f.mu.Unlock()
	return nil
}

func (f *fakeAnalysisRepo) GetConstituentHistory(_ context.Context, _ string, constituentID string) ([]donor.GiftHistory, []donor.ContactHistory, error) {
	if _, ok := f.gifts[constituentID]; !ok {
		if _, ok := f.contacts[constituentID]; !ok {
			return nil, nil, donor.ErrConstituentNotFound
		}
	}
	return f.gifts[constituentID], f.contacts[constituentID], nil
}

type fakeAuditSink struct {
	entries []donor.AuditEntry
}

func (f *fakeAuditSink) Record(_ context.Context, entry donor.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func seedRepo(n int) *fakeAnalysisRepo {
	repo := &fakeAnalysisRepo{
		gifts:    make(map[string][]donor.GiftHistory),
		contacts: make(map[string][]donor.ContactHistory),
	}
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c-%04d", i)
		repo.constituents = append(repo.constituents, ConstituentRef{ID: id, EstimatedCapacity: 10000})
		repo.gifts[id] = []donor.GiftHistory{
			{Amount: 100, GiftDate: now.AddDate(0, 0, -(30 + i))},
			{Amount: 100, GiftDate: now.AddDate(-1, 0, -(30 + i))},
		}
		repo.contacts[id] = []donor.ContactHistory{
			{ContactDate: now.AddDate(0, 0, -15), ContactType: "call", Outcome: donor.OutcomePositive},
		}
	}
	return repo
}

func TestRunAnalysisPagesThroughAllConstituents(t *testing.T) {
	t.Parallel()

	repo := seedRepo(250)
	audit := &fakeAuditSink{}
	worker := NewRefreshWorker(repo, audit, quietLogger(), RefreshConfig{BatchSize: 100})

	err := worker.RunAnalysisForOrganization(context.Background(), "org-1")
	require.NoError(t, err)

	// 250 constituents at page size 100: three full pages plus the empty
	// terminating read.
	assert.Equal(t, 4, repo.listCalls)
	require.Len(t, repo.stored, 3)
	assert.Len(t, repo.stored[0], 100)
	assert.Len(t, repo.stored[2], 50)

	scored := make(map[string]bool)
	for _, page := range repo.stored {
		for _, prediction := range page {
			assert.GreaterOrEqual(t, prediction.LapseRisk.Score, 0.0)
			assert.LessOrEqual(t, prediction.LapseRisk.Score, 1.0)
			assert.False(t, scored[prediction.ConstituentID], "constituent scored twice")
			scored[prediction.ConstituentID] = true
		}
	}
	assert.Len(t, scored, 250)

	assert.Equal(t, "org-1", repo.analyzedOrg)
	require.NotNil(t, repo.analyzedAt)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "analysis.completed", audit.entries[0].Action)
	assert.Equal(t, 250, audit.entries[0].Details["constituents_scored"])
}

func TestRunAnalysisEmptyOrganization(t *testing.T) {
	t.Parallel()

	repo := seedRepo(0)
	audit := &fakeAuditSink{}
	worker := NewRefreshWorker(repo, audit, quietLogger(), RefreshConfig{})

	err := worker.RunAnalysisForOrganization(context.Background(), "org-empty")
	require.NoError(t, err)

	assert.Empty(t, repo.stored)
	assert.Equal(t, "org-empty", repo.analyzedOrg)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, 0, audit.entries[0].Details["constituents_scored"])
}

func TestTriggerAnalysisNeverBlocks(t *testing.T) {
	t.Parallel()

	worker := NewRefreshWorker(seedRepo(0), &fakeAuditSink{}, quietLogger(), RefreshConfig{})

	// The worker is not started, so nothing drains the buffer. Overfilling
	// it must drop signals instead of blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			worker.TriggerAnalysis("org-1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("TriggerAnalysis blocked")
	}
}

func TestOnDemandMatchesBatchForSameData(t *testing.T) {
	t.Parallel()

	repo := seedRepo(1)
	worker := NewRefreshWorker(repo, &fakeAuditSink{}, quietLogger(), RefreshConfig{})

	require.NoError(t, worker.RunAnalysisForOrganization(context.Background(), "org-1"))
	require.Len(t, repo.stored, 1)
	batch := repo.stored[0][0].LapseRisk

	onDemand, err := worker.CalculateConstituentLapseRisk(context.Background(), "org-1", "c-0000")
	require.NoError(t, err)

	// The reference times differ by microseconds; at four decimal places the
	// scores agree.
	assert.InDelta(t, batch.Score, onDemand.Score, 0.001)
	require.Len(t, onDemand.Factors, len(batch.Factors))
	for i := range onDemand.Factors {
		assert.Equal(t, batch.Factors[i].Name, onDemand.Factors[i].Name)
	}
}

func TestCalculateConstituentLapseRiskUnknownConstituent(t *testing.T) {
	t.Parallel()

	worker := NewRefreshWorker(seedRepo(0), &fakeAuditSink{}, quietLogger(), RefreshConfig{})

	_, err := worker.CalculateConstituentLapseRisk(context.Background(), "org-1", "c-missing")
	assert.ErrorIs(t, err, donor.ErrConstituentNotFound)
}

func TestStartConsumesTriggers(t *testing.T) {
	t.Parallel()

	repo := seedRepo(3)
	audit := &fakeAuditSink{}
	worker := NewRefreshWorker(repo, audit, quietLogger(), RefreshConfig{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	worker.TriggerAnalysis("org-1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if repo.analyzedOrganization() == "org-1" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("triggered analysis never ran")
}
