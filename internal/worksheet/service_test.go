package worksheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/venture-calc/internal/cache"
	"github.com/iwvelando/venture-calc/pkg/calc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// memoryRepo is an in-memory Repository with the same not-found and cascade
// behavior as the SQLite store.
type memoryRepo struct {
	mu         sync.Mutex
	ventures   map[string]Venture
	kpis       map[string]KPI
	worksheets map[string]Worksheet
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		ventures:   map[string]Venture{},
		kpis:       map[string]KPI{},
		worksheets: map[string]Worksheet{},
	}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

func (r *memoryRepo) CreateVenture(_ context.Context, v Venture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ventures[v.ID] = v
	return nil
}

func (r *memoryRepo) UpdateVenture(_ context.Context, v Venture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ventures[v.ID]; !ok {
		return notFound("venture", v.ID)
	}
	r.ventures[v.ID] = v
	return nil
}

func (r *memoryRepo) GetVenture(_ context.Context, id string) (Venture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.ventures[id]
	if !ok {
		return Venture{}, notFound("venture", id)
	}
	return v, nil
}

func (r *memoryRepo) ListVentures(context.Context) ([]Venture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Venture{}
	for _, v := range r.ventures {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) DeleteVenture(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ventures[id]; !ok {
		return notFound("venture", id)
	}
	delete(r.ventures, id)
	for kid, k := range r.kpis {
		if k.VentureID == id {
			delete(r.kpis, kid)
		}
	}
	for wid, w := range r.worksheets {
		if w.VentureID == id {
			delete(r.worksheets, wid)
		}
	}
	return nil
}

func (r *memoryRepo) UpsertKPI(_ context.Context, k KPI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kpis[k.ID] = k
	return nil
}

func (r *memoryRepo) GetKPI(_ context.Context, id string) (KPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.kpis[id]
	if !ok {
		return KPI{}, notFound("kpi", id)
	}
	return k, nil
}

func (r *memoryRepo) ListKPIs(_ context.Context, ventureID string) ([]KPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []KPI{}
	for _, k := range r.kpis {
		if k.VentureID == ventureID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) DeleteKPI(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kpis[id]; !ok {
		return notFound("kpi", id)
	}
	delete(r.kpis, id)
	return nil
}

func (r *memoryRepo) CreateWorksheet(_ context.Context, w Worksheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worksheets[w.ID] = w
	return nil
}

func (r *memoryRepo) UpdateWorksheet(_ context.Context, w Worksheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.worksheets[w.ID]; !ok {
		return notFound("worksheet", w.ID)
	}
	r.worksheets[w.ID] = w
	return nil
}

func (r *memoryRepo) GetWorksheet(_ context.Context, id string) (Worksheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worksheets[id]
	if !ok {
		return Worksheet{}, notFound("worksheet", id)
	}
	return w, nil
}

func (r *memoryRepo) ListWorksheets(_ context.Context, ventureID string) ([]Worksheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Worksheet{}
	for _, w := range r.worksheets {
		if ventureID == "" || w.VentureID == ventureID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) DeleteWorksheet(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.worksheets[id]; !ok {
		return notFound("worksheet", id)
	}
	delete(r.worksheets, id)
	return nil
}

// countingCache records how often each operation is used.
type countingCache struct {
	*cache.Memory
	gets, sets, hits int
	failSet          bool
}

func (c *countingCache) Get(ctx context.Context, key string) (string, bool) {
	c.gets++
	v, ok := c.Memory.Get(ctx, key)
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *countingCache) Set(ctx context.Context, key, value string) error {
	c.sets++
	if c.failSet {
		return errors.New("cache unavailable")
	}
	return c.Memory.Set(ctx, key, value)
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *countingCache) {
	t.Helper()
	repo := newMemoryRepo()
	c := &countingCache{Memory: cache.NewMemory(0)}
	svc := NewService(repo, calc.NewEngine(nil), c, nil)

	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo, c
}

func roiInputs() map[string]interface{} {
	return map[string]interface{}{"investment": 10000.0, "revenue": 8000.0, "costs": 3000.0, "years": 3.0}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		input   string
		want    Confidence
		wantErr bool
	}{
		{"", ConfidenceEstimate, false},
		{"actual", ConfidenceActual, false},
		{" Mixed ", ConfidenceMixed, false},
		{"mock", ConfidenceMock, false},
		{"estimate", ConfidenceEstimate, false},
		{"guess", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfidence(tt.input)
			if tt.wantErr {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKPIProgress(t *testing.T) {
	k := KPI{Value: 2500, Target: 10000}
	require.NotNil(t, k.Progress())
	assert.InDelta(t, 25.0, *k.Progress(), 1e-9)
	assert.Nil(t, KPI{Value: 5}.Progress())

	encoded, err := json.Marshal(k)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"progress":25`)
	assert.Contains(t, string(encoded), `"value":2500`)
}

func TestVentureLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateVenture(ctx, VentureInput{Name: "  "})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name", verr.Field)

	v, err := svc.CreateVenture(ctx, VentureInput{Name: " Lane Coffee ", Stage: "seed"})
	require.NoError(t, err)
	assert.Equal(t, "Lane Coffee", v.Name)
	assert.Equal(t, "id-001", v.ID)

	updated, err := svc.UpdateVenture(ctx, v.ID, VentureInput{Name: "Lane Roasters", Stage: "growth"})
	require.NoError(t, err)
	assert.Equal(t, "growth", updated.Stage)

	ventures, err := svc.ListVentures(ctx)
	require.NoError(t, err)
	assert.Len(t, ventures, 1)

	require.NoError(t, svc.DeleteVenture(ctx, v.ID))
	_, err = svc.GetVenture(ctx, v.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpsertKPI(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertKPI(ctx, "missing", KPIInput{Name: "MRR"})
	assert.True(t, errors.Is(err, ErrNotFound))

	v, err := svc.CreateVenture(ctx, VentureInput{Name: "Lane"})
	require.NoError(t, err)
	other, err := svc.CreateVenture(ctx, VentureInput{Name: "Other"})
	require.NoError(t, err)

	k, err := svc.UpsertKPI(ctx, v.ID, KPIInput{Name: "MRR", Value: 4000, Target: 8000})
	require.NoError(t, err)
	assert.Equal(t, ConfidenceEstimate, k.Confidence)
	assert.InDelta(t, 50.0, *k.Progress(), 1e-9)

	k, err = svc.UpsertKPI(ctx, v.ID, KPIInput{ID: k.ID, Name: "MRR", Value: 6000, Target: 8000, Confidence: "actual"})
	require.NoError(t, err)
	kpis, err := svc.ListKPIs(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, kpis, 1)
	assert.Equal(t, 6000.0, kpis[0].Value)
	assert.Equal(t, ConfidenceActual, kpis[0].Confidence)

	_, err = svc.UpsertKPI(ctx, other.ID, KPIInput{ID: k.ID, Name: "MRR"})
	assert.Error(t, err)

	_, err = svc.UpsertKPI(ctx, v.ID, KPIInput{Name: "Churn", Confidence: "hunch"})
	assert.Error(t, err)

	require.NoError(t, svc.DeleteKPI(ctx, k.ID))
	assert.True(t, errors.Is(svc.DeleteKPI(ctx, k.ID), ErrNotFound))
}

func TestCreateWorksheetEvaluates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorksheet(ctx, WorksheetInput{Name: "Launch", Kind: "ROI", Inputs: roiInputs()})
	require.NoError(t, err)
	assert.Equal(t, "roi", w.Kind)
	assert.Empty(t, w.Error)
	assert.Equal(t, ConfidenceEstimate, w.Confidence)

	var outputs map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Outputs, &outputs))
	// (8000-3000)*3 = 15000 net against 10000 invested.
	assert.InDelta(t, 50.0, outputs["roi"], 1e-9)

	stored, err := svc.GetWorksheet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Outputs, stored.Outputs)
}

func TestCreateWorksheetKeepsFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inputs := roiInputs()
	delete(inputs, "revenue")
	w, err := svc.CreateWorksheet(ctx, WorksheetInput{Name: "Draft", Kind: "roi", Inputs: inputs})
	require.NoError(t, err)
	assert.Contains(t, w.Error, "revenue")
	assert.Equal(t, []string{"revenue"}, w.Missing)
	assert.Empty(t, w.Outputs)

	stored, err := svc.GetWorksheet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Error, stored.Error)

	w, err = svc.CreateWorksheet(ctx, WorksheetInput{Name: "Bad price", Kind: "breakeven",
		Inputs: map[string]interface{}{"fixedCosts": 1000, "variableCost": 20, "price": 10}})
	require.NoError(t, err)
	assert.NotEmpty(t, w.Error)
}

func TestCreateWorksheetRejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateWorksheet(ctx, WorksheetInput{Name: "x", Kind: "irr"})
	assert.True(t, errors.Is(err, calc.ErrUnknownKind))

	_, err = svc.CreateWorksheet(ctx, WorksheetInput{Kind: "roi"})
	assert.Error(t, err)

	_, err = svc.CreateWorksheet(ctx, WorksheetInput{Name: "x", Kind: "roi", VentureID: "ghost"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.CreateWorksheet(ctx, WorksheetInput{Name: "x", Kind: "roi", Confidence: "maybe"})
	assert.Error(t, err)
}

func TestUpdateWorksheetReevaluates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorksheet(ctx, WorksheetInput{Name: "Draft", Kind: "roi",
		Inputs: map[string]interface{}{"investment": 10000}})
	require.NoError(t, err)
	require.NotEmpty(t, w.Error)

	name := "Final"
	confidence := "mixed"
	w, err = svc.UpdateWorksheet(ctx, w.ID, WorksheetUpdate{Name: &name, Confidence: &confidence, Inputs: roiInputs()})
	require.NoError(t, err)
	assert.Empty(t, w.Error)
	assert.Nil(t, w.Missing)
	assert.NotEmpty(t, w.Outputs)
	assert.Equal(t, "Final", w.Name)
	assert.Equal(t, ConfidenceMixed, w.Confidence)

	_, err = svc.UpdateWorksheet(ctx, "ghost", WorksheetUpdate{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEvaluateCaches(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	first := svc.Evaluate(ctx, calc.KindROI, roiInputs())
	require.True(t, first.OK())
	assert.Equal(t, 1, c.sets)
	assert.Equal(t, 0, c.hits)

	second := svc.Evaluate(ctx, calc.KindROI, roiInputs())
	require.True(t, second.OK())
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, 1, c.sets)

	a, err := json.Marshal(first.Outputs)
	require.NoError(t, err)
	b, err := json.Marshal(second.Outputs)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	failed := svc.Evaluate(ctx, calc.KindROI, map[string]interface{}{})
	assert.False(t, failed.OK())
	assert.Equal(t, 1, c.sets)
}

func TestEvaluateIgnoresCacheFailure(t *testing.T) {
	svc, _, c := newTestService(t)
	c.failSet = true

	result := svc.Evaluate(context.Background(), calc.KindBreakeven,
		map[string]interface{}{"fixedCosts": 1000, "variableCost": 5, "price": 15})
	require.True(t, result.OK())
	assert.Equal(t, 1, c.sets)
}

func TestListWorksheetsAndCascade(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.CreateVenture(ctx, VentureInput{Name: "Lane"})
	require.NoError(t, err)
	_, err = svc.CreateWorksheet(ctx, WorksheetInput{VentureID: v.ID, Name: "a", Kind: "roi", Inputs: roiInputs()})
	require.NoError(t, err)
	_, err = svc.CreateWorksheet(ctx, WorksheetInput{Name: "b", Kind: "roi", Inputs: roiInputs()})
	require.NoError(t, err)

	all, err := svc.ListWorksheets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListWorksheets(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.ListWorksheets(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, svc.DeleteVenture(ctx, v.ID))
	all, err = svc.ListWorksheets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExportYAML(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorksheet(ctx, WorksheetInput{Name: "Launch", Kind: "roi", Inputs: roiInputs(), Confidence: "mock"})
	require.NoError(t, err)

	out, err := svc.ExportYAML(ctx, w.ID)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, "Launch", doc["name"])
	assert.Equal(t, "roi", doc["kind"])
	assert.Equal(t, "mock", doc["confidence"])
	outputs, ok := doc["outputs"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, outputs, "roi")

	_, err = svc.ExportYAML(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}
