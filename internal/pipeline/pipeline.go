// Package pipeline runs one incremental pass over a scraped job batch:
// classify, diff against the previous baseline, alert on new records in the
// preferred clusters, then replace the baseline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/skillradar/internal/cluster"
	"github.com/amishk599/skillradar/internal/filter"
	"github.com/amishk599/skillradar/internal/model"
)

// HistoryRecorder stores a summary of each committed run. Optional.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, r model.RunRecord) error
}

// Locker serializes runs that share a baseline. Optional.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Settings are the per-deployment knobs of a Pipeline.
type Settings struct {
	Preferred          model.ClusterSet
	Training           cluster.Config
	SkipFirstRunAlerts bool // seed the baseline silently when none exists yet
}

// Pipeline owns the full run for one input source:
// load → classify → diff → filter → notify → replace baseline.
type Pipeline struct {
	source      model.BatchSource
	store       model.Store
	notifier    model.Notifier
	settings    Settings
	alertFilter model.JobFilter
	history     HistoryRecorder
	lock        Locker
	logger      *slog.Logger
}

// New creates a pipeline wired with its required dependencies.
func New(
	source model.BatchSource,
	store model.Store,
	notifier model.Notifier,
	settings Settings,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		source:   source,
		store:    store,
		notifier: notifier,
		settings: settings,
		logger:   logger,
	}
}

// SetAlertFilter adds a filter applied to preferred-cluster matches before
// they are sent to the notifier.
func (p *Pipeline) SetAlertFilter(f model.JobFilter) { p.alertFilter = f }

// SetHistory records every committed run through h.
func (p *Pipeline) SetHistory(h HistoryRecorder) { p.history = h }

// SetLock holds l for the duration of Run.
func (p *Pipeline) SetLock(l Locker) { p.lock = l }

// Preferred returns the configured preferred clusters.
func (p *Pipeline) Preferred() model.ClusterSet { return p.settings.Preferred }

// Snapshot is everything computed before any alert is sent or state written.
type Snapshot struct {
	Classified model.Batch
	New        model.Batch
	Classifier *cluster.Model
	Trained    bool // classifier was fitted during this call
	FirstRun   bool // no baseline existed
}

// Result summarizes a committed run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Fetched   int
	New       int
	Matched   int
	Trained   bool
	FirstRun  bool
	Alerts    model.Batch
}

// EnsureClassifier loads the persisted classifier, or fits one on batch and
// persists it if none exists. The returned bool reports whether training
// happened. A half-present or corrupt model is a *model.ModelLoadError and
// never triggers retraining.
func (p *Pipeline) EnsureClassifier(ctx context.Context, batch model.Batch) (*cluster.Model, bool, error) {
	vBlob, vErr := p.store.LoadModel(ctx, cluster.VectorizerKey)
	kBlob, kErr := p.store.LoadModel(ctx, cluster.KMeansKey)

	vMissing := errors.Is(vErr, model.ErrModelNotFound)
	kMissing := errors.Is(kErr, model.ErrModelNotFound)

	switch {
	case vErr == nil && kErr == nil:
		m, err := cluster.Decode(vBlob, kBlob)
		if err != nil {
			return nil, false, err
		}
		p.logger.Debug("using saved classifier", "clusters", m.NumClusters(), "terms", m.VocabularySize())
		return m, false, nil
	case vMissing && kMissing:
		m, err := p.train(ctx, batch)
		if err != nil {
			return nil, false, err
		}
		return m, true, nil
	case vMissing && kErr == nil:
		return nil, false, &model.ModelLoadError{Key: cluster.VectorizerKey, Err: fmt.Errorf("missing while %q exists", cluster.KMeansKey)}
	case kMissing && vErr == nil:
		return nil, false, &model.ModelLoadError{Key: cluster.KMeansKey, Err: fmt.Errorf("missing while %q exists", cluster.VectorizerKey)}
	case vErr != nil && !vMissing:
		return nil, false, asLoadError(cluster.VectorizerKey, vErr)
	default:
		return nil, false, asLoadError(cluster.KMeansKey, kErr)
	}
}

func (p *Pipeline) train(ctx context.Context, batch model.Batch) (*cluster.Model, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("training classifier: %w", model.ErrNoInput)
	}

	p.logger.Info("no saved classifier, training a new one",
		"records", len(batch),
		"clusters", p.settings.Training.Clusters,
	)

	docs := make([]string, len(batch))
	for i, j := range batch {
		docs[i] = cluster.CleanSkills(j.Skills)
	}
	m, err := cluster.Train(docs, p.settings.Training)
	if err != nil {
		return nil, fmt.Errorf("training classifier: %w", err)
	}

	blobs, err := m.Artifacts()
	if err != nil {
		return nil, &model.PersistenceError{Op: "encode model", Err: err}
	}
	// The k-means artifact is written last: a crash in between leaves only the
	// vectorizer, which the next run reports instead of silently retraining.
	for _, key := range []string{cluster.VectorizerKey, cluster.KMeansKey} {
		if err := p.store.SaveModel(ctx, key, blobs[key]); err != nil {
			return nil, asPersistenceError("save model "+key, err)
		}
	}

	p.logger.Info("classifier trained", "clusters", m.NumClusters(), "terms", m.VocabularySize())
	return m, nil
}

// Classify returns a copy of batch with every record's Cluster assigned from
// its cleaned skills text. batch and c are not modified.
func Classify(batch model.Batch, c model.Classifier) (model.Batch, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("classifying: %w", model.ErrNoInput)
	}

	k := c.NumClusters()
	out := make(model.Batch, len(batch))
	for i, j := range batch {
		j.Cluster = c.Assign(cluster.CleanSkills(j.Skills))
		if j.Cluster < 0 || j.Cluster >= k {
			return nil, fmt.Errorf("classifier assigned cluster %d to %q outside [0, %d)", j.Cluster, j.Identifier(), k)
		}
		out[i] = j
	}
	return out, nil
}

// FindNewRecords returns the records of classified whose identifier does not
// appear in baseline, in their original order. A nil or empty baseline makes
// every record new. Duplicates within classified are kept.
func FindNewRecords(classified, baseline model.Batch) model.Batch {
	seen := baseline.Identifiers()
	out := model.Batch{}
	for _, j := range classified {
		if _, ok := seen[j.Identifier()]; !ok {
			out = append(out, j)
		}
	}
	return out
}

// FilterByPreference returns the records whose cluster is in preferred, in
// order. An empty preferred set yields an empty batch.
func FilterByPreference(records model.Batch, preferred model.ClusterSet) model.Batch {
	return filter.Apply(filter.NewClusterFilter(preferred), records)
}

// UpdateBaseline replaces the persisted baseline with classified. Every
// record must carry an assigned cluster.
func (p *Pipeline) UpdateBaseline(ctx context.Context, classified model.Batch) error {
	for _, j := range classified {
		if j.Cluster < 0 {
			return fmt.Errorf("updating baseline: %q has no cluster", j.Identifier())
		}
	}
	if err := p.store.SaveBaseline(ctx, classified); err != nil {
		return asPersistenceError("save baseline", err)
	}
	return nil
}

// Prepare loads and classifies the current batch and diffs it against the
// baseline. It may train and persist a classifier but never touches the
// baseline.
func (p *Pipeline) Prepare(ctx context.Context) (*Snapshot, error) {
	batch, err := p.source.LoadBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading batch: %w", err)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("loading batch: %w", model.ErrNoInput)
	}

	clf, trained, err := p.EnsureClassifier(ctx, batch)
	if err != nil {
		return nil, err
	}
	if unreachable := outsideModel(p.settings.Preferred, clf.NumClusters()); len(unreachable) > 0 {
		p.logger.Warn("preferred clusters outside the saved classifier will never match",
			"clusters", unreachable,
			"classifier_clusters", clf.NumClusters(),
		)
	}

	classified, err := Classify(batch, clf)
	if err != nil {
		return nil, err
	}

	firstRun := false
	baseline, err := p.store.LoadBaseline(ctx)
	switch {
	case errors.Is(err, model.ErrNoBaseline):
		p.logger.Warn("no previous baseline found, treating every record as new")
		firstRun = true
		baseline = nil
	case err != nil:
		return nil, fmt.Errorf("loading baseline: %w", err)
	}

	return &Snapshot{
		Classified: classified,
		New:        FindNewRecords(classified, baseline),
		Classifier: clf,
		Trained:    trained,
		FirstRun:   firstRun,
	}, nil
}

// Run executes one full pass. Cancellation is honored up to the moment the
// baseline is written; after that the run completes.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := p.logger.With("run_id", res.RunID)

	if p.lock != nil {
		if err := p.lock.Lock(ctx); err != nil {
			return nil, fmt.Errorf("run %s: %w", res.RunID, err)
		}
		defer func() {
			if err := p.lock.Unlock(); err != nil {
				logger.Warn("releasing run lock", "error", err)
			}
		}()
	}

	snap, err := p.Prepare(ctx)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", res.RunID, err)
	}
	res.Fetched = len(snap.Classified)
	res.New = len(snap.New)
	res.Trained = snap.Trained
	res.FirstRun = snap.FirstRun

	alerts := FilterByPreference(snap.New, p.settings.Preferred)
	if p.alertFilter != nil {
		alerts = filter.Apply(p.alertFilter, alerts)
	}
	if snap.FirstRun && p.settings.SkipFirstRunAlerts {
		logger.Info("first run: seeding baseline without alerts", "suppressed", len(alerts))
		alerts = model.Batch{}
	}
	res.Matched = len(alerts)
	res.Alerts = alerts

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s cancelled before commit: %w", res.RunID, err)
	}

	// Alerts go out before the baseline moves so a failed notification is
	// retried on the next run.
	if len(alerts) > 0 {
		if err := p.notifier.Notify(alerts); err != nil {
			return nil, fmt.Errorf("run %s: notifying: %w", res.RunID, err)
		}
	} else {
		logger.Info("no new jobs found in preferred clusters", "preferred", p.settings.Preferred.Sorted())
	}

	if err := p.UpdateBaseline(context.WithoutCancel(ctx), snap.Classified); err != nil {
		return nil, fmt.Errorf("run %s: %w", res.RunID, err)
	}

	if p.history != nil {
		rec := model.RunRecord{
			RunID:     res.RunID,
			StartedAt: res.StartedAt,
			Fetched:   res.Fetched,
			New:       res.New,
			Matched:   res.Matched,
			Trained:   res.Trained,
			FirstRun:  res.FirstRun,
		}
		if err := p.history.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
			logger.Warn("recording run history", "error", err)
		}
	}

	logger.Info("pipeline run complete",
		"fetched", res.Fetched,
		"new", res.New,
		"matched", res.Matched,
		"trained", res.Trained,
		"first_run", res.FirstRun,
	)
	return res, nil
}

// outsideModel returns the preferred ids a classifier with k clusters can
// never assign, in ascending order.
func outsideModel(preferred model.ClusterSet, k int) []int {
	var out []int
	for _, id := range preferred.Sorted() {
		if id < 0 || id >= k {
			out = append(out, id)
		}
	}
	return out
}

func asLoadError(key string, err error) error {
	var loadErr *model.ModelLoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &model.ModelLoadError{Key: key, Err: err}
}

func asPersistenceError(op string, err error) error {
	var persistErr *model.PersistenceError
	if errors.As(err, &persistErr) {
		return err
	}
	return &model.PersistenceError{Op: op, Err: err}
}
