package check

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/planwerk/coordination"
	"github.com/planwerk/planwerk/model"
	"github.com/planwerk/planwerk/rules"
)

func testProject() model.Project {
	return model.Project{ID: "p1", Name: "Bürogebäude Nord", BuildingType: model.BuildingOffice, Phase: 3}
}

func testRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	registry, err := rules.NewRegistry(rules.RuleDefinition{
		ID:             "kg420-specific-load",
		Trade:          model.TradeHeating,
		Category:       model.CategoryTechnical,
		Severity:       model.SeverityMedium,
		Title:          "Specific heating load above limit",
		Description:    "Specific load {value} W/m² exceeds the limit of {limit} W/m².",
		NormRef:        "DIN EN 12831-1",
		BaseConfidence: 0.85,
		When: []rules.Condition{{
			Field:     "heating_load_w",
			DividedBy: "area_m2",
			Op:        rules.OpGreater,
			Value:     120,
		}},
	})
	require.NoError(t, err)
	return registry
}

func heatingDocs() []model.DocumentMetadata {
	return []model.DocumentMetadata{{
		DocumentRef: "heizlast.pdf",
		Trade:       model.TradeHeating,
		Values: map[string]any{
			"heating_load_w": 70000.0, // 140 W/m²
			"area_m2":        500.0,
		},
	}}
}

// waitTerminal polls until the order leaves the running states.
func waitTerminal(t *testing.T, c *Coordinator, id string) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := c.Status(id)
		require.NoError(t, err)
		if status.State.Terminal() {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("order did not reach a terminal state")
	return Status{}
}

func TestStartCheckHappyPath(t *testing.T) {
	c := New(testRegistry(t), coordination.NewRegistry())

	id, err := c.StartCheck(context.Background(), testProject(), heatingDocs())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	status := waitTerminal(t, c, id)
	assert.Equal(t, model.StateCompleted, status.State)
	assert.Equal(t, 2, status.Evaluators) // one trade plus coordination
	assert.Equal(t, 2, status.Completed)
	assert.Equal(t, 0, status.Failed)

	order, err := c.Results(id)
	require.NoError(t, err)
	require.Len(t, order.Findings, 1)

	f := order.Findings[0]
	assert.Equal(t, model.TradeHeating, f.Trade)
	assert.Equal(t, model.SeverityMedium, f.Severity)
	assert.Contains(t, f.Description, "140")
	assert.Equal(t, 1, order.Summary.Total)
	require.NotNil(t, order.CompletedAt)
	assert.False(t, order.CompletedAt.IsZero())
}

func TestStartCheckValidation(t *testing.T) {
	c := New(testRegistry(t), coordination.NewRegistry())

	tests := []struct {
		name    string
		project model.Project
		docs    []model.DocumentMetadata
	}{
		{"empty documents", testProject(), nil},
		{"missing project id", model.Project{BuildingType: model.BuildingOffice, Phase: 3}, heatingDocs()},
		{"bad building type", model.Project{ID: "p1", BuildingType: "castle", Phase: 3}, heatingDocs()},
		{"bad phase", model.Project{ID: "p1", BuildingType: model.BuildingOffice, Phase: 0}, heatingDocs()},
		{
			"unknown trade",
			testProject(),
			[]model.DocumentMetadata{{DocumentRef: "x.pdf", Trade: "kg999_unknown", Values: map[string]any{}}},
		},
		{
			"missing document ref",
			testProject(),
			[]model.DocumentMetadata{{Trade: model.TradeHeating, Values: map[string]any{}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.StartCheck(context.Background(), tt.project, tt.docs)
			require.Error(t, err)

			var verr *model.ValidationError
			assert.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)
		})
	}
}

func TestResultsBeforeCompletion(t *testing.T) {
	release := make(chan struct{})
	c := New(testRegistry(t), coordination.NewRegistry(),
		WithEvaluatorTimeout(5*time.Second),
		WithExpertFunc(func(ctx context.Context, _ model.Project, _ model.Trade, _ []model.DocumentMetadata) ([]model.Finding, error) {
			select {
			case <-release:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	)

	id, err := c.StartCheck(context.Background(), testProject(), heatingDocs())
	require.NoError(t, err)

	_, err = c.Results(id)
	assert.ErrorIs(t, err, ErrNotReady)

	close(release)
	waitTerminal(t, c, id)

	_, err = c.Results(id)
	assert.NoError(t, err)
}

func TestResultsUnknownOrder(t *testing.T) {
	c := New(testRegistry(t), coordination.NewRegistry())

	_, err := c.Results("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Status("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Cancel("nope"), ErrNotFound)
}

func TestEvaluatorTimeoutYieldsDiagnostic(t *testing.T) {
	c := New(testRegistry(t), coordination.NewRegistry(),
		WithEvaluatorTimeout(20*time.Millisecond),
		WithExpertFunc(func(ctx context.Context, _ model.Project, trade model.Trade, _ []model.DocumentMetadata) ([]model.Finding, error) {
			if trade == model.TradeHeating {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return nil, nil
		}),
	)

	docs := append(heatingDocs(), model.DocumentMetadata{
		DocumentRef: "rlt.pdf",
		Trade:       model.TradeVentilation,
		Values:      map[string]any{},
	})

	id, err := c.StartCheck(context.Background(), testProject(), docs)
	require.NoError(t, err)

	status := waitTerminal(t, c, id)
	// A single stuck evaluator must not fail the whole check.
	assert.Equal(t, model.StateCompleted, status.State)
	assert.Equal(t, 1, status.Failed)

	order, err := c.Results(id)
	require.NoError(t, err)
	require.Len(t, order.Diagnostics, 1)
	assert.Equal(t, "expert.kg420_heating", order.Diagnostics[0].Source)
	assert.Contains(t, order.Diagnostics[0].Reason, "deadline")
}

func TestExpertErrorYieldsDiagnostic(t *testing.T) {
	c := New(testRegistry(t), coordination.NewRegistry(),
		WithExpertFunc(func(ctx context.Context, _ model.Project, _ model.Trade, _ []model.DocumentMetadata) ([]model.Finding, error) {
			return nil, errors.New("extraction backend unavailable")
		}),
	)

	id, err := c.StartCheck(context.Background(), testProject(), heatingDocs())
	require.NoError(t, err)

	status := waitTerminal(t, c, id)
	assert.Equal(t, model.StateCompleted, status.State)

	order, err := c.Results(id)
	require.NoError(t, err)
	require.Len(t, order.Diagnostics, 1)
	assert.Contains(t, order.Diagnostics[0].Reason, "unavailable")
}

func TestCancelRunningOrder(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	c := New(testRegistry(t), coordination.NewRegistry(),
		WithEvaluatorTimeout(5*time.Second),
		WithExpertFunc(func(ctx context.Context, _ model.Project, _ model.Trade, _ []model.DocumentMetadata) ([]model.Finding, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	)

	id, err := c.StartCheck(context.Background(), testProject(), heatingDocs())
	require.NoError(t, err)

	<-started
	require.NoError(t, c.Cancel(id))

	status := waitTerminal(t, c, id)
	assert.Equal(t, model.StateFailed, status.State)
	assert.Equal(t, "cancelled", status.FailReason)

	_, err = c.Results(id)
	assert.ErrorIs(t, err, ErrNotReady)

	// A terminal order cannot be cancelled again.
	assert.ErrorIs(t, c.Cancel(id), ErrNotCancelable)
}

func TestFindingsOrderIndependentOfEvaluatorTiming(t *testing.T) {
	docs := []model.DocumentMetadata{
		{ID: "d1", DocumentRef: "heizlast.pdf", Trade: model.TradeHeating, Values: map[string]any{
			"heating_load_w": 70000.0,
			"area_m2":        500.0,
		}},
		{ID: "d2", DocumentRef: "rlt.pdf", Trade: model.TradeVentilation, Values: map[string]any{}},
		{ID: "d3", DocumentRef: "elektro.pdf", Trade: model.TradeElectrical, Values: map[string]any{}},
	}

	run := func(delays map[model.Trade]time.Duration) []model.Finding {
		registry := testRegistry(t)
		var c *Coordinator
		c = New(registry, coordination.NewRegistry(),
			WithExpertFunc(func(ctx context.Context, project model.Project, trade model.Trade, docs []model.DocumentMetadata) ([]model.Finding, error) {
				time.Sleep(delays[trade])
				return c.defaultExpert(ctx, project, trade, docs)
			}),
		)

		id, err := c.StartCheck(context.Background(), testProject(), docs)
		require.NoError(t, err)
		status := waitTerminal(t, c, id)
		require.Equal(t, model.StateCompleted, status.State)
		order, err := c.Results(id)
		require.NoError(t, err)
		return order.Findings
	}

	first := run(map[model.Trade]time.Duration{
		model.TradeHeating: 30 * time.Millisecond,
	})
	second := run(map[model.Trade]time.Duration{
		model.TradeVentilation: 30 * time.Millisecond,
		model.TradeElectrical:  15 * time.Millisecond,
	})

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("finding order depends on evaluator timing:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDocumentsGetIDs(t *testing.T) {
	c := New(testRegistry(t), coordination.NewRegistry())

	docs := heatingDocs()
	id, err := c.StartCheck(context.Background(), testProject(), docs)
	require.NoError(t, err)
	waitTerminal(t, c, id)

	order, err := c.Results(id)
	require.NoError(t, err)
	for _, doc := range order.Documents {
		assert.NotEmpty(t, doc.ID)
	}

	// ID assignment happens on the order's own copy, not the caller's
	// slice.
	for _, doc := range docs {
		assert.Empty(t, doc.ID)
	}
}
