package pipeline

import (
	"context"
	"sort"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefops/triage-cli/internal/classify"
	"github.com/reliefops/triage-cli/internal/model"
	"github.com/reliefops/triage-cli/pkg/arcgis"
)

var testFields = FieldMap{ObjectID: "objectid", Note: "notes", Flag: "ai_flag"}

// fakeLayer simulates a feature layer holding submissions in memory. Query
// returns records with an unset flag; ApplyEdits sets flags and can be
// scripted to reject specific object IDs.
type fakeLayer struct {
	records     map[int64]*fakeRecord
	pageSize    int
	failUpdates map[int64]string
	queryErr    error
	editErr     error
	ensured     []arcgis.Field
	queries     int
}

type fakeRecord struct {
	note string
	flag string
}

func newFakeLayer(records map[int64]string) *fakeLayer {
	l := &fakeLayer{records: map[int64]*fakeRecord{}, failUpdates: map[int64]string{}}
	for id, note := range records {
		l.records[id] = &fakeRecord{note: note}
	}
	return l
}

func (l *fakeLayer) unclassifiedIDs() []int64 {
	var ids []int64
	for id, rec := range l.records {
		if rec.flag == "" {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *fakeLayer) Query(_ context.Context, q arcgis.Query) (*arcgis.QueryResult, error) {
	l.queries++
	if l.queryErr != nil {
		return nil, l.queryErr
	}

	ids := l.unclassifiedIDs()
	result := &arcgis.QueryResult{ObjectIDField: "objectid"}

	end := len(ids)
	if l.pageSize > 0 && q.Offset+l.pageSize < end {
		end = q.Offset + l.pageSize
		result.ExceededLimit = true
	}
	if q.Offset > len(ids) {
		return result, nil
	}

	for _, id := range ids[q.Offset:end] {
		result.Features = append(result.Features, arcgis.Feature{
			Attributes: map[string]any{"objectid": float64(id), "notes": l.records[id].note},
		})
	}
	return result, nil
}

func (l *fakeLayer) ApplyEdits(_ context.Context, updates []arcgis.Update) ([]arcgis.EditResult, error) {
	if l.editErr != nil {
		return nil, l.editErr
	}

	var results []arcgis.EditResult
	for _, u := range updates {
		oid := int64(u.Attributes["objectid"].(int64))
		if reason, ok := l.failUpdates[oid]; ok {
			results = append(results, arcgis.EditResult{
				ObjectID: oid,
				Error: &struct {
					Code        int    `json:"code"`
					Description string `json:"description"`
				}{Code: 1000, Description: reason},
			})
			continue
		}
		l.records[oid].flag = u.Attributes["ai_flag"].(string)
		results = append(results, arcgis.EditResult{ObjectID: oid, Success: true})
	}
	return results, nil
}

func (l *fakeLayer) Count(context.Context, string) (int, error) {
	return len(l.unclassifiedIDs()), nil
}

func (l *fakeLayer) Layer(context.Context) (*arcgis.LayerInfo, error) {
	return &arcgis.LayerInfo{Name: "Reports"}, nil
}

func (l *fakeLayer) EnsureField(_ context.Context, f arcgis.Field) error {
	l.ensured = append(l.ensured, f)
	return nil
}

// failingClassifier fails on scripted texts and otherwise delegates to the
// keyword strategy.
type failingClassifier struct {
	inner    classify.Classifier
	failText string
}

func (f *failingClassifier) Name() string { return "failing" }

func (f *failingClassifier) Classify(ctx context.Context, text string) (bool, error) {
	if text == f.failText {
		return false, &classify.ServiceError{Err: eris.New("model timeout")}
	}
	return f.inner.Classify(ctx, text)
}

func TestRun_EndToEnd(t *testing.T) {
	layer := newFakeLayer(map[int64]string{
		1: "flood rising fast, need rescue",
		2: "thanks for the update",
	})
	runner := New(layer, classify.NewKeyword([]string{"flood", "rescue"}), testFields)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, 1, report.OK)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, "EMERGENCY", layer.records[1].flag)
	assert.Equal(t, "OK", layer.records[2].flag)
	assert.Equal(t, "2 processed, 1 flagged", Summary(report))
}

func TestRun_Idempotent(t *testing.T) {
	layer := newFakeLayer(map[int64]string{
		1: "house on fire",
		2: "all clear",
	})
	runner := New(layer, classify.NewKeyword(nil), testFields)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)

	// No new records between passes: the second pass finds nothing.
	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, "EMERGENCY", layer.records[1].flag)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	layer := newFakeLayer(map[int64]string{
		1: "trapped under debris",
		2: "power is back on",
		3: "fire spreading to the barn",
	})
	layer.failUpdates[2] = "stale objectid"

	runner := New(layer, classify.NewKeyword(nil), testFields)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Flagged)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(2), report.Failures[0].ObjectID)
	assert.Equal(t, model.StageUpdate, report.Failures[0].Stage)
	assert.Contains(t, report.Failures[0].Reason, "stale objectid")

	assert.Equal(t, "EMERGENCY", layer.records[1].flag)
	assert.Equal(t, "", layer.records[2].flag)
	assert.Equal(t, "EMERGENCY", layer.records[3].flag)
}

func TestRun_ClassifyFailureLeavesUnclassified(t *testing.T) {
	layer := newFakeLayer(map[int64]string{
		1: "ambiguous situation downtown",
		2: "flood in the basement",
	})
	classifier := &failingClassifier{
		inner:    classify.NewKeyword(nil),
		failText: "ambiguous situation downtown",
	}

	runner := New(layer, classifier, testFields)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, model.StageClassify, report.Failures[0].Stage)

	// The failed record is never defaulted to OK.
	assert.Equal(t, "", layer.records[1].flag)
	assert.Equal(t, "EMERGENCY", layer.records[2].flag)
}

func TestRun_Pagination(t *testing.T) {
	records := map[int64]string{}
	for i := int64(1); i <= 25; i++ {
		records[i] = "no issues"
	}
	layer := newFakeLayer(records)
	layer.pageSize = 10

	runner := New(layer, classify.NewKeyword(nil), testFields, WithPageSize(10))
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, report.Processed)
	assert.Equal(t, 0, report.Flagged)
}

func TestRun_QueryErrorIsFatal(t *testing.T) {
	layer := newFakeLayer(map[int64]string{1: "hello"})
	layer.queryErr = eris.New("Invalid field: ai_flag")

	runner := New(layer, classify.NewKeyword(nil), testFields)
	report, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "fetch unclassified")
}

func TestRun_EnsureFlagField(t *testing.T) {
	layer := newFakeLayer(map[int64]string{})
	runner := New(layer, classify.NewKeyword(nil), testFields, WithEnsureFlagField())

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, layer.ensured, 1)
	assert.Equal(t, "ai_flag", layer.ensured[0].Name)
	assert.Equal(t, "esriFieldTypeString", layer.ensured[0].Type)
}

func TestRun_MissingNoteTreatedAsOK(t *testing.T) {
	layer := newFakeLayer(map[int64]string{})
	layer.records[9] = &fakeRecord{} // note absent entirely

	runner := New(layer, classify.NewKeyword(nil), testFields)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Flagged)
	assert.Equal(t, "OK", layer.records[9].flag)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "0 processed, 0 flagged", Summary(&model.Report{}))
	assert.Equal(t, "3 processed, 1 flagged, 2 skipped",
		Summary(&model.Report{Processed: 3, Flagged: 1, Skipped: 2}))
}
