package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/prompts"
	"github.com/ekaya-inc/herdwise/pkg/safety"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// fakeClassifier is a scripted safety check.
type fakeClassifier struct {
	name    string
	verdict *safety.Verdict
	err     error

	mu    sync.Mutex
	calls int
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(ctx context.Context, _ string, _ float64) (*safety.Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.verdict == nil {
		return &safety.Verdict{}, nil
	}
	return f.verdict, nil
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeExecutor returns a fixed result set or error for every statement.
type fakeExecutor struct {
	dialect sqlutil.Dialect
	rs      *models.ResultSet
	err     error
	// block waits for ctx to end before answering.
	block bool

	mu         sync.Mutex
	statements []string
}

func (f *fakeExecutor) TestConnection(context.Context) error { return nil }
func (f *fakeExecutor) Close() error                         { return nil }

func (f *fakeExecutor) Dialect() sqlutil.Dialect {
	if f.dialect == "" {
		return sqlutil.DialectPostgres
	}
	return f.dialect
}

func (f *fakeExecutor) Query(ctx context.Context, statement string) (*models.ResultSet, error) {
	f.mu.Lock()
	f.statements = append(f.statements, statement)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rs, nil
}

func (f *fakeExecutor) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statements...)
}

// fakeProvider serves one executor under a single backend name.
type fakeProvider struct {
	backend datasource.Backend
	exec    datasource.QueryExecutor
	getErr  error
}

func newFakeProvider(exec datasource.QueryExecutor) *fakeProvider {
	return &fakeProvider{
		backend: datasource.Backend{Name: "warehouse", Type: "postgres"},
		exec:    exec,
	}
}

func (p *fakeProvider) Resolve(name string) (datasource.Backend, error) {
	if name == "" || name == p.backend.Name {
		return p.backend, nil
	}
	return datasource.Backend{}, apperrors.ErrUnknownBackend
}

func (p *fakeProvider) Get(_ context.Context, name string) (datasource.QueryExecutor, error) {
	if _, err := p.Resolve(name); err != nil {
		return nil, err
	}
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.exec, nil
}

// scriptedLLM answers each pipeline stage from its own canned response,
// routed by the system prompt the stage sends.
type scriptedLLM struct {
	Intent    string
	SQL       string
	Narrative string
	Chart     string
}

func (s scriptedLLM) client(t *testing.T) *llm.MockLLMClient {
	t.Helper()

	m := llm.NewMockLLMClient()
	m.GenerateResponseFunc = func(_ context.Context, _ string, system string, _ float64) (*llm.GenerateResponseResult, error) {
		switch {
		case system == prompts.IntentSystemPrompt:
			return &llm.GenerateResponseResult{Content: s.Intent}, nil
		case strings.Contains(system, "<ontology>"):
			return &llm.GenerateResponseResult{Content: s.SQL}, nil
		case system == prompts.BuildInterpretationSystemPrompt():
			return &llm.GenerateResponseResult{Content: s.Narrative}, nil
		case system == prompts.BuildChartSpecSystemPrompt():
			return &llm.GenerateResponseResult{Content: s.Chart}, nil
		}
		t.Errorf("unexpected system prompt: %.80s", system)
		return &llm.GenerateResponseResult{}, nil
	}
	return m
}

func farmRows() *models.ResultSet {
	return &models.ResultSet{
		Columns: []string{"farm_name", "avg_mortality"},
		Rows: []map[string]any{
			{"farm_name": "Green Valley", "avg_mortality": 4.15},
			{"farm_name": "Hill Side", "avg_mortality": 3.7},
			{"farm_name": "River Bend", "avg_mortality": 1.2},
		},
	}
}
