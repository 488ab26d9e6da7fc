package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/venture-calc/internal/worksheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var created = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func seedVenture(t *testing.T, s *Store, id string) worksheet.Venture {
	t.Helper()
	v := worksheet.Venture{ID: id, Name: "Venture " + id, Stage: "seed", CreatedAt: created, UpdatedAt: created}
	require.NoError(t, s.CreateVenture(context.Background(), v))
	return v
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	seedVenture(t, s, "v1")
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	ventures, err := s.ListVentures(ctx)
	require.NoError(t, err)
	assert.Len(t, ventures, 1)
}

func TestVentureCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v := seedVenture(t, s, "v1")
	seedVenture(t, s, "v2")

	got, err := s.GetVenture(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, v, got)

	v.Name = "Renamed"
	v.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, s.UpdateVenture(ctx, v))
	got, err = s.GetVenture(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.UpdatedAt.Equal(v.UpdatedAt))

	ventures, err := s.ListVentures(ctx)
	require.NoError(t, err)
	require.Len(t, ventures, 2)
	assert.Equal(t, "v1", ventures[0].ID)

	require.NoError(t, s.DeleteVenture(ctx, "v2"))
	_, err = s.GetVenture(ctx, "v2")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.DeleteVenture(ctx, "v2"), ErrNotFound))
	assert.True(t, errors.Is(s.UpdateVenture(ctx, worksheet.Venture{ID: "nope"}), ErrNotFound))
}

func TestKPIUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedVenture(t, s, "v1")

	k := worksheet.KPI{ID: "k1", VentureID: "v1", Name: "MRR", Value: 4000, Target: 10000, Unit: "USD",
		Confidence: worksheet.ConfidenceActual, UpdatedAt: created}
	require.NoError(t, s.UpsertKPI(ctx, k))

	k.Value = 5000
	require.NoError(t, s.UpsertKPI(ctx, k))

	got, err := s.GetKPI(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, got.Value)
	assert.Equal(t, worksheet.ConfidenceActual, got.Confidence)

	kpis, err := s.ListKPIs(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, kpis, 1)

	require.NoError(t, s.DeleteKPI(ctx, "k1"))
	_, err = s.GetKPI(ctx, "k1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestKPIRequiresVenture(t *testing.T) {
	s := openTestStore(t)
	k := worksheet.KPI{ID: "k1", VentureID: "missing", Name: "MRR", Confidence: worksheet.ConfidenceEstimate, UpdatedAt: created}
	assert.Error(t, s.UpsertKPI(context.Background(), k))
}

func TestWorksheetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedVenture(t, s, "v1")

	w := worksheet.Worksheet{
		ID:         "w1",
		VentureID:  "v1",
		Name:       "Launch ROI",
		Kind:       "roi",
		Inputs:     map[string]interface{}{"investment": 1000.0, "years": 3.0},
		Outputs:    json.RawMessage(`{"roi":50}`),
		Confidence: worksheet.ConfidenceMock,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	require.NoError(t, s.CreateWorksheet(ctx, w))

	got, err := s.GetWorksheet(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, w.Inputs, got.Inputs)
	assert.JSONEq(t, `{"roi":50}`, string(got.Outputs))
	assert.Equal(t, "v1", got.VentureID)
	assert.Nil(t, got.Missing)

	got.Outputs = nil
	got.Error = "missing required fields: revenue"
	got.Missing = []string{"revenue"}
	got.UpdatedAt = created.Add(time.Minute)
	require.NoError(t, s.UpdateWorksheet(ctx, got))

	again, err := s.GetWorksheet(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, again.Outputs)
	assert.Equal(t, []string{"revenue"}, again.Missing)
	assert.Equal(t, got.Error, again.Error)
	assert.True(t, again.CreatedAt.Equal(created))
}

func TestWorksheetWithoutVenture(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w := worksheet.Worksheet{ID: "w1", Name: "Scratch", Kind: "npv", Confidence: worksheet.ConfidenceEstimate,
		CreatedAt: created, UpdatedAt: created}
	require.NoError(t, s.CreateWorksheet(ctx, w))

	got, err := s.GetWorksheet(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "", got.VentureID)
	assert.Empty(t, got.Inputs)
}

func TestListWorksheetsFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedVenture(t, s, "v1")
	seedVenture(t, s, "v2")

	for i, venture := range []string{"v1", "v2", "v1"} {
		w := worksheet.Worksheet{
			ID:         string(rune('a' + i)),
			VentureID:  venture,
			Name:       "sheet",
			Kind:       "breakeven",
			Confidence: worksheet.ConfidenceEstimate,
			CreatedAt:  created.Add(time.Duration(i) * time.Second),
			UpdatedAt:  created,
		}
		require.NoError(t, s.CreateWorksheet(ctx, w))
	}

	all, err := s.ListWorksheets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	v1, err := s.ListWorksheets(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, v1, 2)
	assert.Equal(t, "a", v1[0].ID)
	assert.Equal(t, "c", v1[1].ID)
}

func TestDeleteVentureCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedVenture(t, s, "v1")

	require.NoError(t, s.UpsertKPI(ctx, worksheet.KPI{ID: "k1", VentureID: "v1", Name: "Users",
		Confidence: worksheet.ConfidenceEstimate, UpdatedAt: created}))
	require.NoError(t, s.CreateWorksheet(ctx, worksheet.Worksheet{ID: "w1", VentureID: "v1", Name: "sheet",
		Kind: "roi", Confidence: worksheet.ConfidenceEstimate, CreatedAt: created, UpdatedAt: created}))

	require.NoError(t, s.DeleteVenture(ctx, "v1"))

	_, err := s.GetKPI(ctx, "k1")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetWorksheet(ctx, "w1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteMissingWorksheet(t *testing.T) {
	s := openTestStore(t)
	err := s.DeleteWorksheet(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	err = s.UpdateWorksheet(context.Background(), worksheet.Worksheet{ID: "ghost", Confidence: worksheet.ConfidenceEstimate})
	assert.True(t, errors.Is(err, ErrNotFound))
}
