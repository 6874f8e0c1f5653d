// Package check runs compliance check orders end to end: it validates the
// request, fans out to the per-trade expert evaluators and the cross-trade
// coordinator, collects their batches, and aggregates them into a single
// ordered finding list. Orders move through a small state machine; every
// order reaches completed or failed.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planwerk/planwerk/aggregate"
	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/coordination"
	"github.com/planwerk/planwerk/evaluator"
	"github.com/planwerk/planwerk/events"
	"github.com/planwerk/planwerk/metrics"
	"github.com/planwerk/planwerk/model"
	"github.com/planwerk/planwerk/rules"
)

// DefaultEvaluatorTimeout bounds a single expert or coordination run.
const DefaultEvaluatorTimeout = 5 * time.Second

// ExpertFunc evaluates all documents of one trade. The coordinator runs
// each expert in its own goroutine under a deadline.
type ExpertFunc func(ctx context.Context, project model.Project, trade model.Trade, docs []model.DocumentMetadata) ([]model.Finding, error)

// CrossFunc evaluates the cross-trade coordination view of an order.
type CrossFunc func(ctx context.Context, project model.Project, docs map[model.Trade][]model.DocumentMetadata) ([]model.Finding, error)

// Status reports the observable progress of a check order.
type Status struct {
	State      model.CheckState `json:"state"`
	Evaluators int              `json:"evaluators"`
	Completed  int              `json:"completed"`
	Failed     int              `json:"failed"`
	FailReason string           `json:"fail_reason,omitempty"`
}

// order is the coordinator's mutable view of one check.
type order struct {
	data      model.CheckOrder
	cancel    context.CancelFunc
	total     int
	completed int
	failed    int
}

// Coordinator owns the check order lifecycle.
type Coordinator struct {
	mu     sync.RWMutex
	orders map[string]*order

	registry  *rules.Registry
	evaluator *evaluator.Evaluator
	cross     *coordination.Coordinator
	agg       *aggregate.Aggregator
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	timeout   time.Duration

	expertFn ExpertFunc
	crossFn  CrossFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEvaluatorTimeout bounds each evaluator run.
func WithEvaluatorTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConfidenceModel overrides the confidence model used for rule
// evaluation and insufficient-data findings.
func WithConfidenceModel(conf confidence.Model) Option {
	return func(c *Coordinator) {
		c.evaluator = evaluator.New(evaluator.WithConfidenceModel(conf), evaluator.WithLogger(c.logger))
		c.cross = coordination.New(c.cross.Registry(), coordination.WithConfidenceModel(conf), coordination.WithLogger(c.logger))
		c.agg = aggregate.New(conf)
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithExpertFunc replaces the per-trade expert. Tests use this to inject
// slow or failing evaluators.
func WithExpertFunc(fn ExpertFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.expertFn = fn
		}
	}
}

// WithCrossFunc replaces the cross-trade coordination evaluator.
func WithCrossFunc(fn CrossFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.crossFn = fn
		}
	}
}

// New creates a Coordinator over a rule registry and a coordination
// rule set.
func New(registry *rules.Registry, crossRules *coordination.Registry, opts ...Option) *Coordinator {
	conf := confidence.Default()
	c := &Coordinator{
		orders:    make(map[string]*order),
		registry:  registry,
		evaluator: evaluator.New(evaluator.WithConfidenceModel(conf)),
		cross:     coordination.New(crossRules, coordination.WithConfidenceModel(conf)),
		agg:       aggregate.New(conf),
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
		timeout:   DefaultEvaluatorTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.expertFn == nil {
		c.expertFn = c.defaultExpert
	}
	if c.crossFn == nil {
		c.crossFn = c.defaultCross
	}
	return c
}

// defaultExpert evaluates one trade's documents against the current rule
// snapshot.
func (c *Coordinator) defaultExpert(ctx context.Context, project model.Project, trade model.Trade, docs []model.DocumentMetadata) ([]model.Finding, error) {
	snap := c.registry.Snapshot()
	defs := snap.RulesFor(trade, project.BuildingType, project.Phase)
	var findings []model.Finding
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		findings = append(findings, c.evaluator.Evaluate(doc, project.BuildingType, project.Phase, defs)...)
	}
	return findings, nil
}

// defaultCross runs the registered coordination rules.
func (c *Coordinator) defaultCross(ctx context.Context, project model.Project, docs map[model.Trade][]model.DocumentMetadata) ([]model.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.cross.Evaluate(project, docs), nil
}

// StartCheck validates the request, creates a check order, and launches
// its evaluation. It returns the order ID immediately; progress is
// observed via Status and Results.
func (c *Coordinator) StartCheck(ctx context.Context, project model.Project, docs []model.DocumentMetadata) (string, error) {
	if err := project.Validate(); err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", &model.ValidationError{Field: "documents", Message: "at least one document is required"}
	}
	for i, doc := range docs {
		if doc.DocumentRef == "" {
			return "", &model.ValidationError{Field: fmt.Sprintf("documents[%d].document_ref", i), Message: "document_ref is required"}
		}
		if !doc.Trade.Valid() {
			return "", &model.ValidationError{Field: fmt.Sprintf("documents[%d].trade", i), Message: fmt.Sprintf("unknown trade %q", doc.Trade)}
		}
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	// The order owns its document list; the caller's slice stays
	// untouched.
	owned := make([]model.DocumentMetadata, len(docs))
	copy(owned, docs)
	for i := range owned {
		if owned[i].ID == "" {
			owned[i].ID = uuid.NewString()
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ord := &order{
		data: model.CheckOrder{
			ID:        id,
			Project:   project,
			Documents: owned,
			State:     model.StateCreated,
			CreatedAt: now,
		},
		cancel: cancel,
	}

	c.mu.Lock()
	c.orders[id] = ord
	c.mu.Unlock()

	c.transition(id, model.StateDocumentsReady)
	go c.run(runCtx, id)
	return id, nil
}

// run drives one order from running to a terminal state.
func (c *Coordinator) run(ctx context.Context, id string) {
	c.mu.Lock()
	ord, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	byTrade := make(map[model.Trade][]model.DocumentMetadata)
	for _, doc := range ord.data.Documents {
		byTrade[doc.Trade] = append(byTrade[doc.Trade], doc)
	}
	trades := make([]model.Trade, 0, len(byTrade))
	for trade := range byTrade {
		trades = append(trades, trade)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i] < trades[j] })
	project := ord.data.Project
	ord.total = len(trades) + 1
	c.mu.Unlock()

	if !c.transition(id, model.StateRunning) {
		return
	}
	started := time.Now()
	c.setStartedAt(id, started.UTC())
	if c.metrics != nil {
		c.metrics.ChecksStarted.Inc()
	}
	c.publisher.CheckStarted(events.CheckStartedEvent{
		OrderID:       id,
		ProjectID:     project.ID,
		DocumentCount: len(ord.data.Documents),
		Trades:        trades,
		StartedAt:     started.UTC(),
	})
	c.logger.Info("Check started",
		slog.String("order_id", id),
		slog.String("project_id", project.ID),
		slog.Int("trades", len(trades)))

	results := make(chan aggregate.Batch, len(trades)+1)
	var wg sync.WaitGroup
	for _, trade := range trades {
		wg.Add(1)
		go func(trade model.Trade) {
			defer wg.Done()
			results <- c.runExpert(ctx, id, project, trade, byTrade[trade])
		}(trade)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- c.runCross(ctx, id, project, byTrade)
	}()
	wg.Wait()
	close(results)

	batches := make([]aggregate.Batch, 0, len(trades)+1)
	for batch := range results {
		batches = append(batches, batch)
	}

	if ctx.Err() != nil {
		c.fail(id, "cancelled")
		return
	}
	if !c.transition(id, model.StateAggregating) {
		return
	}

	result := c.agg.Aggregate(batches)
	c.mu.Lock()
	if ord, ok := c.orders[id]; ok {
		ord.data.Findings = result.Findings
		ord.data.Summary = result.Summary
		ord.data.Diagnostics = result.Diagnostics
	}
	c.mu.Unlock()

	if !c.transition(id, model.StateCompleted) {
		return
	}
	c.setCompletedAt(id, time.Now().UTC())

	var failedSources []string
	for _, diag := range result.Diagnostics {
		failedSources = append(failedSources, diag.Source)
	}
	if c.metrics != nil {
		c.metrics.ChecksCompleted.WithLabelValues("completed").Inc()
		c.metrics.ObserveSummary(result.Summary)
	}
	c.publisher.CheckCompleted(events.CheckCompletedEvent{
		OrderID:          id,
		ProjectID:        project.ID,
		FindingCount:     result.Summary.Total,
		BySeverity:       result.Summary.BySeverity,
		FailedEvaluators: failedSources,
		Duration:         time.Since(started),
	})
	c.logger.Info("Check completed",
		slog.String("order_id", id),
		slog.Int("findings", result.Summary.Total),
		slog.Int("failed_evaluators", len(failedSources)),
		slog.Duration("duration", time.Since(started)))
}

// runExpert executes one expert under the evaluator timeout. A timed-out
// or failed expert yields an errored batch; the check itself continues.
func (c *Coordinator) runExpert(ctx context.Context, id string, project model.Project, trade model.Trade, docs []model.DocumentMetadata) aggregate.Batch {
	source := "expert." + string(trade)
	findings, err := c.runBounded(ctx, trade, func(ctx context.Context) ([]model.Finding, error) {
		return c.expertFn(ctx, project, trade, docs)
	})
	return c.finishBatch(id, source, trade, findings, err)
}

// runCross executes the coordination evaluator under the same bound.
func (c *Coordinator) runCross(ctx context.Context, id string, project model.Project, docs map[model.Trade][]model.DocumentMetadata) aggregate.Batch {
	findings, err := c.runBounded(ctx, model.TradeCoordination, func(ctx context.Context) ([]model.Finding, error) {
		return c.crossFn(ctx, project, docs)
	})
	return c.finishBatch(id, coordination.Source, model.TradeCoordination, findings, err)
}

// runBounded runs fn in its own goroutine and abandons it when the
// deadline passes. Evaluators are pure over their inputs, so an
// abandoned run cannot corrupt shared state.
func (c *Coordinator) runBounded(ctx context.Context, trade model.Trade, fn func(context.Context) ([]model.Finding, error)) ([]model.Finding, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		findings []model.Finding
		err      error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		findings, err := fn(runCtx)
		done <- outcome{findings: findings, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		out = outcome{err: fmt.Errorf("evaluator %s: %w", trade, runCtx.Err())}
	}
	if c.metrics != nil {
		c.metrics.EvaluatorDuration.WithLabelValues(string(trade)).Observe(time.Since(start).Seconds())
		if out.err != nil {
			c.metrics.EvaluatorFailures.WithLabelValues(string(trade)).Inc()
		}
	}
	return out.findings, out.err
}

// finishBatch updates order progress and wraps the outcome as a batch.
func (c *Coordinator) finishBatch(id, source string, trade model.Trade, findings []model.Finding, err error) aggregate.Batch {
	c.mu.Lock()
	if ord, ok := c.orders[id]; ok {
		if err != nil {
			ord.failed++
		} else {
			ord.completed++
		}
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("Evaluator failed",
			slog.String("order_id", id),
			slog.String("source", source),
			slog.String("error", err.Error()))
		return aggregate.Batch{Source: source, Err: err}
	}
	return aggregate.Batch{Source: source, Findings: findings}
}

// Cancel aborts a non-terminal order. The order transitions to failed
// and still-running evaluators are abandoned.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	ord, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if ord.data.State.Terminal() {
		c.mu.Unlock()
		return ErrNotCancelable
	}
	cancel := ord.cancel
	c.mu.Unlock()

	cancel()
	c.fail(id, "cancelled")
	return nil
}

// Status returns the progress view of an order.
func (c *Coordinator) Status(id string) (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ord, ok := c.orders[id]
	if !ok {
		return Status{}, ErrNotFound
	}
	return Status{
		State:      ord.data.State,
		Evaluators: ord.total,
		Completed:  ord.completed,
		Failed:     ord.failed,
		FailReason: ord.data.FailReason,
	}, nil
}

// Results returns the full order once it has completed. Before that it
// returns ErrNotReady; unknown IDs return ErrNotFound.
func (c *Coordinator) Results(id string) (model.CheckOrder, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ord, ok := c.orders[id]
	if !ok {
		return model.CheckOrder{}, ErrNotFound
	}
	if ord.data.State != model.StateCompleted {
		return model.CheckOrder{}, fmt.Errorf("%w: state %s", ErrNotReady, ord.data.State)
	}
	return ord.data, nil
}

// transition advances an order's state. It returns false when the order
// is gone or the transition is illegal, which happens when the order was
// cancelled concurrently.
func (c *Coordinator) transition(id string, to model.CheckState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ord, ok := c.orders[id]
	if !ok {
		return false
	}
	if !model.CanTransition(ord.data.State, to) {
		return false
	}
	ord.data.State = to
	return true
}

// fail moves an order to failed with a reason. Already-terminal orders
// are left untouched.
func (c *Coordinator) fail(id, reason string) {
	c.mu.Lock()
	ord, ok := c.orders[id]
	if !ok || ord.data.State.Terminal() {
		c.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	ord.data.State = model.StateFailed
	ord.data.FailReason = reason
	ord.data.CompletedAt = &now
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ChecksCompleted.WithLabelValues("failed").Inc()
	}
	c.publisher.CheckFailed(events.CheckFailedEvent{OrderID: id, Reason: reason})
	c.logger.Warn("Check failed", slog.String("order_id", id), slog.String("reason", reason))
}

// setStartedAt records the running timestamp.
func (c *Coordinator) setStartedAt(id string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ord, ok := c.orders[id]; ok {
		ord.data.StartedAt = &t
	}
}

// setCompletedAt records the completion timestamp.
func (c *Coordinator) setCompletedAt(id string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ord, ok := c.orders[id]; ok {
		ord.data.CompletedAt = &t
	}
}
