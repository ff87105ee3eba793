package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/skillradar/internal/cluster"
	"github.com/amishk599/skillradar/internal/filter"
	"github.com/amishk599/skillradar/internal/model"
	"github.com/amishk599/skillradar/internal/store"
)

// --- Fakes ---

type staticSource struct {
	batch model.Batch
	err   error
}

func (s *staticSource) LoadBatch(_ context.Context) (model.Batch, error) {
	return s.batch, s.err
}

// memStore is an in-memory model.Store with injectable write failures.
type memStore struct {
	baseline     model.Batch
	hasBaseline  bool
	models       map[string][]byte
	modelSaves   int
	baselineErr  error
	modelSaveErr error
}

func newMemStore() *memStore {
	return &memStore{models: make(map[string][]byte)}
}

func (s *memStore) LoadBaseline(_ context.Context) (model.Batch, error) {
	if !s.hasBaseline {
		return nil, model.ErrNoBaseline
	}
	return append(model.Batch(nil), s.baseline...), nil
}

func (s *memStore) SaveBaseline(_ context.Context, batch model.Batch) error {
	if s.baselineErr != nil {
		return s.baselineErr
	}
	s.baseline = append(model.Batch(nil), batch...)
	s.hasBaseline = true
	return nil
}

func (s *memStore) LoadModel(_ context.Context, key string) ([]byte, error) {
	blob, ok := s.models[key]
	if !ok {
		return nil, model.ErrModelNotFound
	}
	return blob, nil
}

func (s *memStore) SaveModel(_ context.Context, key string, blob []byte) error {
	if s.modelSaveErr != nil {
		return s.modelSaveErr
	}
	s.modelSaves++
	s.models[key] = blob
	return nil
}

type recordingNotifier struct {
	calls    int
	notified model.Batch
	err      error
}

func (n *recordingNotifier) Notify(alerts model.Batch) error {
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, alerts...)
	return nil
}

// stubClassifier maps exact cleaned skills text to a cluster, 0 otherwise.
type stubClassifier struct {
	k      int
	byText map[string]int
	seen   []string
}

func (c *stubClassifier) Assign(skills string) int {
	c.seen = append(c.seen, skills)
	return c.byText[skills]
}

func (c *stubClassifier) NumClusters() int { return c.k }

type recordingHistory struct {
	runs []model.RunRecord
}

func (h *recordingHistory) RecordRun(_ context.Context, r model.RunRecord) error {
	h.runs = append(h.runs, r)
	return nil
}

type failingLock struct{}

func (failingLock) Lock(context.Context) error { return model.ErrLocked }
func (failingLock) Unlock() error              { return nil }

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scrapedBatch() model.Batch {
	rows := []struct{ title, company, skills string }{
		{"Data Scientist", "Acme", "Python,SQL,Pandas"},
		{"ML Engineer", "Beta", "python,machine learning,pandas"},
		{"Data Analyst", "Gamma", "SQL,Python,Statistics"},
		{"Accountant", "Delta", "Excel,Accounting,Finance"},
		{"Finance Analyst", "Acme", "excel,finance,budgeting"},
		{"Auditor", "Zeta", "Accounting,Excel,Tally"},
		{"Frontend Developer", "Eta", "React,JavaScript,CSS"},
		{"UI Engineer", "Theta", "javascript,react,html"},
		{"Backend Engineer", "Iota", "Java,Spring,Microservices"},
		{"DevOps Engineer", "Kappa", "Kubernetes,Docker,AWS"},
	}
	batch := make(model.Batch, len(rows))
	for i, r := range rows {
		batch[i] = model.JobRecord{Title: r.title, Company: r.company, Location: "Remote", Skills: r.skills, Cluster: model.Unassigned}
	}
	return batch
}

func allClusters(k int) model.ClusterSet {
	s := model.NewClusterSet()
	for i := 0; i < k; i++ {
		s[i] = struct{}{}
	}
	return s
}

func newTestPipeline(src model.BatchSource, st model.Store, n model.Notifier, preferred model.ClusterSet) *Pipeline {
	return New(src, st, n, Settings{Preferred: preferred, Training: cluster.DefaultConfig()}, discardLogger())
}

// --- Pure operations ---

func TestClassify_AssignsEveryRecordInRange(t *testing.T) {
	batch := scrapedBatch()
	docs := make([]string, len(batch))
	for i, j := range batch {
		docs[i] = cluster.CleanSkills(j.Skills)
	}
	m, err := cluster.Train(docs, cluster.DefaultConfig())
	require.NoError(t, err)

	got, err := Classify(batch, m)
	require.NoError(t, err)
	require.Len(t, got, len(batch))
	for _, j := range got {
		assert.GreaterOrEqual(t, j.Cluster, 0)
		assert.Less(t, j.Cluster, 5)
	}
	// The input batch is untouched.
	for _, j := range batch {
		assert.Equal(t, model.Unassigned, j.Cluster)
	}
}

func TestClassify_CleansSkillsAndToleratesMissing(t *testing.T) {
	clf := &stubClassifier{k: 3, byText: map[string]int{"python sql": 2}}
	batch := model.Batch{
		{Title: "Engineer", Company: "Acme", Skills: "Python,SQL"},
		{Title: "Clerk", Company: "Acme"},
	}

	got, err := Classify(batch, clf)
	require.NoError(t, err)
	assert.Equal(t, []string{"python sql", ""}, clf.seen)
	assert.Equal(t, 2, got[0].Cluster)
	assert.Equal(t, 0, got[1].Cluster)
}

func TestClassify_EmptyBatch(t *testing.T) {
	_, err := Classify(model.Batch{}, &stubClassifier{k: 5})
	assert.ErrorIs(t, err, model.ErrNoInput)
}

func TestClassify_RejectsOutOfRangeCluster(t *testing.T) {
	clf := &stubClassifier{k: 2, byText: map[string]int{"go": 7}}
	_, err := Classify(model.Batch{{Title: "Gopher", Company: "Acme", Skills: "Go"}}, clf)
	assert.Error(t, err)
}

func TestFindNewRecords(t *testing.T) {
	batch := model.Batch{
		{Title: "Engineer", Company: "Acme", Cluster: 0},
		{Title: "Analyst", Company: "Acme", Cluster: 1},
		{Title: "Engineer", Company: "Acme", Cluster: 0},
	}

	assert.Equal(t, batch, FindNewRecords(batch, nil), "absent baseline makes everything new")
	assert.Empty(t, FindNewRecords(batch, batch), "a batch fully in the baseline has nothing new")

	baseline := model.Batch{{Title: "Analyst", Company: "Acme", Cluster: 3}}
	assert.Equal(t, model.Batch{batch[0], batch[2]}, FindNewRecords(batch, baseline),
		"duplicates inside the batch are kept and order is preserved")
}

func TestFilterByPreference(t *testing.T) {
	records := model.Batch{
		{Title: "A", Company: "X", Cluster: 0},
		{Title: "B", Company: "X", Cluster: 3},
		{Title: "C", Company: "X", Cluster: 1},
	}

	assert.Empty(t, FilterByPreference(records, model.NewClusterSet()))
	assert.Equal(t, records, FilterByPreference(records, allClusters(5)))
	assert.Equal(t, model.Batch{records[1]}, FilterByPreference(records, model.NewClusterSet(3)))
}

func TestScenario_AnalystIsTheOnlyAlert(t *testing.T) {
	newBatch := model.Batch{
		{Title: "Engineer", Company: "Acme", Skills: "python,sql", Cluster: 0},
		{Title: "Analyst", Company: "Acme", Skills: "excel", Cluster: 1},
	}
	baseline := model.Batch{{Title: "Engineer", Company: "Acme", Skills: "python,sql", Cluster: 0}}

	fresh := FindNewRecords(newBatch, baseline)
	require.Equal(t, model.Batch{newBatch[1]}, fresh)

	alerts := FilterByPreference(fresh, model.NewClusterSet(1))
	assert.Equal(t, model.Batch{newBatch[1]}, alerts)
}

func TestScenario_IdenticalBatchHasNoNewRecords(t *testing.T) {
	batch := model.Batch{
		{Title: "Engineer", Company: "Acme", Cluster: 0},
		{Title: "Analyst", Company: "Acme", Cluster: 1},
	}
	fresh := FindNewRecords(batch, batch)
	assert.Empty(t, fresh)
	assert.Empty(t, FilterByPreference(fresh, allClusters(5)))
}

// --- EnsureClassifier ---

func TestEnsureClassifier_TrainsOnceThenLoads(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{}, st, &recordingNotifier{}, nil)
	ctx := context.Background()

	first, trained, err := p.EnsureClassifier(ctx, scrapedBatch())
	require.NoError(t, err)
	assert.True(t, trained)
	assert.Equal(t, 2, st.modelSaves)
	assert.Contains(t, st.models, cluster.VectorizerKey)
	assert.Contains(t, st.models, cluster.KMeansKey)

	second, trained, err := p.EnsureClassifier(ctx, scrapedBatch())
	require.NoError(t, err)
	assert.False(t, trained)
	assert.Equal(t, 2, st.modelSaves, "loading must not write")
	for _, j := range scrapedBatch() {
		text := cluster.CleanSkills(j.Skills)
		assert.Equal(t, first.Assign(text), second.Assign(text))
	}
}

func TestEnsureClassifier_EmptyBatchOnTrainingPath(t *testing.T) {
	p := newTestPipeline(&staticSource{}, newMemStore(), &recordingNotifier{}, nil)

	_, _, err := p.EnsureClassifier(context.Background(), model.Batch{})
	assert.ErrorIs(t, err, model.ErrNoInput)
}

func TestEnsureClassifier_CorruptModelIsNotRetrained(t *testing.T) {
	st := newMemStore()
	st.models[cluster.VectorizerKey] = []byte("{broken")
	st.models[cluster.KMeansKey] = []byte("{}")
	p := newTestPipeline(&staticSource{}, st, &recordingNotifier{}, nil)

	_, _, err := p.EnsureClassifier(context.Background(), scrapedBatch())
	var loadErr *model.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, cluster.VectorizerKey, loadErr.Key)
	assert.Zero(t, st.modelSaves)
}

func TestEnsureClassifier_HalfPresentModel(t *testing.T) {
	st := newMemStore()
	st.models[cluster.VectorizerKey] = []byte(`{"vocabulary":{"go":0},"idf":[1]}`)
	p := newTestPipeline(&staticSource{}, st, &recordingNotifier{}, nil)

	_, _, err := p.EnsureClassifier(context.Background(), scrapedBatch())
	var loadErr *model.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, cluster.KMeansKey, loadErr.Key)
	assert.Zero(t, st.modelSaves)
}

func TestEnsureClassifier_SaveFailureIsPersistenceError(t *testing.T) {
	st := newMemStore()
	st.modelSaveErr = errors.New("read-only filesystem")
	p := newTestPipeline(&staticSource{}, st, &recordingNotifier{}, nil)

	_, _, err := p.EnsureClassifier(context.Background(), scrapedBatch())
	var persistErr *model.PersistenceError
	assert.ErrorAs(t, err, &persistErr)
}

// --- UpdateBaseline ---

func TestUpdateBaseline_RoundTrip(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{}, st, &recordingNotifier{}, nil)
	ctx := context.Background()

	x := model.Batch{
		{Title: "Engineer", Company: "Acme", Skills: "python", Cluster: 0},
		{Title: "Analyst", Company: "Acme", Skills: "excel", Cluster: 4},
	}
	require.NoError(t, p.UpdateBaseline(ctx, x))

	got, err := st.LoadBaseline(ctx)
	require.NoError(t, err)
	assert.Equal(t, x, got)
}

func TestUpdateBaseline_RejectsUnclassified(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{}, st, &recordingNotifier{}, nil)

	err := p.UpdateBaseline(context.Background(), model.Batch{{Title: "A", Company: "B", Cluster: model.Unassigned}})
	assert.Error(t, err)
	assert.False(t, st.hasBaseline)
}

// --- Run ---

func TestRun_FirstRunTrainsAlertsAndSeedsBaseline(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{}
	hist := &recordingHistory{}
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, n, allClusters(5))
	p.SetHistory(hist)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Trained)
	assert.True(t, res.FirstRun)
	assert.Equal(t, 10, res.Fetched)
	assert.Equal(t, 10, res.New)
	assert.Equal(t, 10, res.Matched)
	assert.Len(t, n.notified, 10)
	assert.NotEmpty(t, res.RunID)

	require.True(t, st.hasBaseline)
	require.Len(t, st.baseline, 10)
	for _, j := range st.baseline {
		assert.GreaterOrEqual(t, j.Cluster, 0)
	}

	require.Len(t, hist.runs, 1)
	assert.Equal(t, res.RunID, hist.runs[0].RunID)
	assert.True(t, hist.runs[0].FirstRun)
}

func TestRun_SecondRunWithSameBatchFindsNothing(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{}
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, n, allClusters(5))
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.NoError(t, err)
	calls := n.calls

	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Trained)
	assert.False(t, res.FirstRun)
	assert.Zero(t, res.New)
	assert.Zero(t, res.Matched)
	assert.Equal(t, calls, n.calls, "no notification when nothing is new")
}

func TestRun_AlertsOnlyNewRecordsInPreferredClusters(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{}
	src := &staticSource{batch: scrapedBatch()}
	p := newTestPipeline(src, st, n, allClusters(5))
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.NoError(t, err)

	added := model.JobRecord{Title: "Data Engineer", Company: "Lambda", Location: "Kochi", Skills: "python,sql,spark", Cluster: model.Unassigned}
	src.batch = append(scrapedBatch()[:5], added)
	n.notified = nil

	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Fetched)
	assert.Equal(t, 1, res.New)
	require.Len(t, n.notified, 1)
	assert.Equal(t, "Data Engineer", n.notified[0].Title)

	// The baseline is replaced, not merged.
	assert.Len(t, st.baseline, 6)
}

func TestRun_AlertFilterNarrowsPreferredMatches(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{}
	h := &recordingHistory{}
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, n, allClusters(5))
	p.SetAlertFilter(filter.NewKeywordFilter([]string{"analyst"}, nil, nil, nil))
	p.SetHistory(h)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.New)
	assert.Equal(t, 2, res.Matched)
	require.Len(t, n.notified, 2)
	for _, j := range n.notified {
		assert.Contains(t, j.Title, "Analyst")
	}

	// Filtered-out jobs still enter the baseline.
	assert.Len(t, st.baseline, 10)
	require.Len(t, h.runs, 1)
	assert.Equal(t, res.RunID, h.runs[0].RunID)
	assert.Equal(t, 2, h.runs[0].Matched)
}

func TestRun_EmptyPreferenceAlertsNothing(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{}
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, n, model.NewClusterSet())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.New)
	assert.Zero(t, res.Matched)
	assert.Zero(t, n.calls)
	assert.True(t, st.hasBaseline)
}

func TestRun_SkipFirstRunAlerts(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{}
	p := New(&staticSource{batch: scrapedBatch()}, st, n, Settings{
		Preferred:          allClusters(5),
		Training:           cluster.DefaultConfig(),
		SkipFirstRunAlerts: true,
	}, discardLogger())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
	assert.Zero(t, n.calls)
	assert.True(t, st.hasBaseline)
}

func TestRun_EmptyInput(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{batch: model.Batch{}}, st, &recordingNotifier{}, allClusters(5))

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, model.ErrNoInput)
	assert.Zero(t, st.modelSaves)
	assert.False(t, st.hasBaseline)
}

func TestRun_TooFewRecordsToTrain(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{batch: scrapedBatch()[:3]}, st, &recordingNotifier{}, allClusters(5))

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, cluster.ErrTooFewSamples)
	assert.Equal(t, "insufficient_input", model.Kind(err))
	assert.False(t, st.hasBaseline)
}

func TestRun_BlankSkillsCannotTrain(t *testing.T) {
	batch := scrapedBatch()
	for i := range batch {
		batch[i].Skills = " , "
	}
	p := newTestPipeline(&staticSource{batch: batch}, newMemStore(), &recordingNotifier{}, allClusters(5))

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, cluster.ErrEmptyVocabulary)
	assert.Equal(t, "insufficient_input", model.Kind(err))
}

func TestPrepare_WarnsAboutPreferredClustersOutsideClassifier(t *testing.T) {
	var logs bytes.Buffer
	p := New(&staticSource{batch: scrapedBatch()}, newMemStore(), &recordingNotifier{}, Settings{
		Preferred: model.NewClusterSet(1, 7, 9),
		Training:  cluster.DefaultConfig(),
	}, slog.New(slog.NewTextHandler(&logs, nil)))

	_, err := p.Prepare(context.Background())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "preferred clusters outside the saved classifier")
	assert.Contains(t, logs.String(), "clusters=\"[7 9]\"")
}

func TestRun_CRLFTitleIsNotNewAfterFileBaselineReload(t *testing.T) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	batch := scrapedBatch()
	batch[0].Title = "Data Scientist\r\nRemote"
	batch[0].Summary = "line1\r\nline2"
	n := &recordingNotifier{}
	p := newTestPipeline(&staticSource{batch: batch}, st, n, allClusters(5))
	ctx := context.Background()

	_, err = p.Run(ctx)
	require.NoError(t, err)

	reloaded, err := st.LoadBaseline(ctx)
	require.NoError(t, err)
	assert.Empty(t, FindNewRecords(batch, reloaded))

	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.New)
}

func TestRun_BaselineWriteFailureFailsRun(t *testing.T) {
	st := newMemStore()
	st.baselineErr = errors.New("disk full")
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, &recordingNotifier{}, allClusters(5))

	_, err := p.Run(context.Background())
	var persistErr *model.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "persistence", model.Kind(err))
}

func TestRun_NotifyFailureKeepsOldBaseline(t *testing.T) {
	st := newMemStore()
	n := &recordingNotifier{err: errors.New("webhook down")}
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, n, allClusters(5))

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.False(t, st.hasBaseline)
}

func TestRun_CancelledBeforeCommit(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, &recordingNotifier{}, allClusters(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, st.hasBaseline)
}

func TestRun_LockHeldElsewhere(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(&staticSource{batch: scrapedBatch()}, st, &recordingNotifier{}, allClusters(5))
	p.SetLock(failingLock{})

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, model.ErrLocked)
	assert.Zero(t, st.modelSaves)
}
