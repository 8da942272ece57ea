package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefops/triage-cli/internal/classify"
	"github.com/reliefops/triage-cli/internal/config"
	"github.com/reliefops/triage-cli/internal/model"
	"github.com/reliefops/triage-cli/internal/pipeline"
	"github.com/reliefops/triage-cli/internal/store"
	"github.com/reliefops/triage-cli/pkg/arcgis"
)

// scriptedLayer answers queries with a fixed feature page and counts from a
// per-predicate table.
type scriptedLayer struct {
	features []arcgis.Feature
	counts   map[string]int
	edits    int
}

func (s *scriptedLayer) Layer(context.Context) (*arcgis.LayerInfo, error) { return nil, nil }
func (s *scriptedLayer) EnsureField(context.Context, arcgis.Field) error  { return nil }

func (s *scriptedLayer) Query(_ context.Context, q arcgis.Query) (*arcgis.QueryResult, error) {
	return &arcgis.QueryResult{Features: s.features}, nil
}

func (s *scriptedLayer) Count(_ context.Context, where string) (int, error) {
	return s.counts[where], nil
}

func (s *scriptedLayer) ApplyEdits(_ context.Context, updates []arcgis.Update) ([]arcgis.EditResult, error) {
	s.edits += len(updates)
	results := make([]arcgis.EditResult, len(updates))
	for i := range results {
		results[i].Success = true
	}
	return results, nil
}

func newTestEnv(t *testing.T, layer arcgis.Client) *triageEnv {
	t.Helper()

	cfg = &config.Config{}
	cfg.ArcGIS.ObjectIDField = "objectid"
	cfg.ArcGIS.NoteField = "notes"
	cfg.ArcGIS.FlagField = "ai_flag"

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	classifier := classify.NewKeyword(nil)
	return &triageEnv{
		Store:    st,
		Layer:    layer,
		Runner:   pipeline.New(layer, classifier, fieldMap()),
		Strategy: classifier.Name(),
	}
}

func TestServeHealthz(t *testing.T) {
	env := newTestEnv(t, &scriptedLayer{})
	srv := httptest.NewServer(newRouter(context.Background(), env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeRunTrigger(t *testing.T) {
	layer := &scriptedLayer{features: []arcgis.Feature{
		{Attributes: map[string]any{"objectid": float64(1), "notes": "fire, people trapped"}},
		{Attributes: map[string]any{"objectid": float64(2), "notes": "pothole on 5th street"}},
	}}
	env := newTestEnv(t, layer)
	srv := httptest.NewServer(newRouter(context.Background(), env))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, 2, run.Report.Processed)
	assert.Equal(t, 1, run.Report.Flagged)
	assert.Equal(t, 2, layer.edits)

	// The pass was recorded in run history.
	listResp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var runs []model.Run
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestServeRunSurvivesCallerDisconnect(t *testing.T) {
	layer := &scriptedLayer{features: []arcgis.Feature{
		{Attributes: map[string]any{"objectid": float64(1), "notes": "building collapse"}},
	}}
	env := newTestEnv(t, layer)
	router := newRouter(context.Background(), env)

	// The triggering client has already gone away; the pass must still run
	// to completion on the server's context.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/run", nil).WithContext(canceled)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var run model.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, 1, run.Report.Processed)
	assert.Equal(t, 1, layer.edits)
}

func TestServeRunNotFound(t *testing.T) {
	env := newTestEnv(t, &scriptedLayer{})
	srv := httptest.NewServer(newRouter(context.Background(), env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeStatus(t *testing.T) {
	fields := pipeline.FieldMap{ObjectID: "objectid", Note: "notes", Flag: "ai_flag"}
	layer := &scriptedLayer{counts: map[string]int{
		"1=1":                      10,
		fields.UnclassifiedWhere(): 4,
		"ai_flag = 'EMERGENCY'":    2,
		"ai_flag = 'OK'":           4,
	}}
	env := newTestEnv(t, layer)
	srv := httptest.NewServer(newRouter(context.Background(), env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got layerStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, layerStatus{Total: 10, Unclassified: 4, Emergency: 2, OK: 4}, got)
}
