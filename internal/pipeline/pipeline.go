// Package pipeline runs the read-classify-write triage loop against a
// hosted feature layer.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/classify"
	"github.com/reliefops/triage-cli/internal/model"
	"github.com/reliefops/triage-cli/pkg/arcgis"
)

// FieldMap names the layer attributes the pipeline reads and writes.
type FieldMap struct {
	ObjectID string
	Note     string
	Flag     string
}

// UnclassifiedWhere is the predicate selecting records not yet triaged.
// Survey layers store both NULL and '' for untouched string fields.
func (f FieldMap) UnclassifiedWhere() string {
	return fmt.Sprintf("%s IS NULL OR %s = ''", f.Flag, f.Flag)
}

// Runner executes triage passes. Each pass fetches every unclassified
// record, classifies it, and writes the verdict back one record at a time.
// Records are independent; a failed record is skipped, logged, and picked
// up again on the next pass.
type Runner struct {
	layer      arcgis.Client
	classifier classify.Classifier
	fields     FieldMap
	pageSize   int
	ensureFlag bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithPageSize sets the query page size.
func WithPageSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithEnsureFlagField makes the run create the flag field on the layer if
// it is missing.
func WithEnsureFlagField() Option {
	return func(r *Runner) { r.ensureFlag = true }
}

// New creates a Runner.
func New(layer arcgis.Client, classifier classify.Classifier, fields FieldMap, opts ...Option) *Runner {
	r := &Runner{
		layer:      layer,
		classifier: classifier,
		fields:     fields,
		pageSize:   200,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one triage pass. Connection and query failures abort the
// pass; classification and write failures affect only their record.
func (r *Runner) Run(ctx context.Context) (*model.Report, error) {
	log := zap.L().With(zap.String("strategy", r.classifier.Name()))

	if r.ensureFlag {
		err := r.layer.EnsureField(ctx, arcgis.Field{
			Name:     r.fields.Flag,
			Type:     "esriFieldTypeString",
			Alias:    "AI Emergency Flag",
			Length:   50,
			Nullable: true,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: ensure flag field")
		}
	}

	subs, err := r.fetchUnclassified(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("fetched unclassified submissions", zap.Int("count", len(subs)))

	report := &model.Report{}
	for _, sub := range subs {
		r.processOne(ctx, log, sub, report)
	}

	log.Info("triage pass complete",
		zap.Int("processed", report.Processed),
		zap.Int("flagged", report.Flagged),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// fetchUnclassified pages through every record matching the unclassified
// predicate before any writes happen, so the working set is a snapshot.
func (r *Runner) fetchUnclassified(ctx context.Context) ([]model.Submission, error) {
	var subs []model.Submission
	offset := 0

	for {
		page, err := r.layer.Query(ctx, arcgis.Query{
			Where:     r.fields.UnclassifiedWhere(),
			OutFields: []string{r.fields.ObjectID, r.fields.Note},
			Offset:    offset,
			Limit:     r.pageSize,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: fetch unclassified")
		}

		for _, feat := range page.Features {
			sub, err := r.toSubmission(feat)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}

		if !page.ExceededLimit || len(page.Features) == 0 {
			return subs, nil
		}
		offset += len(page.Features)
	}
}

// processOne classifies and writes a single submission, updating the report.
// All failures here are record-local.
func (r *Runner) processOne(ctx context.Context, log *zap.Logger, sub model.Submission, report *model.Report) {
	emergency, err := r.classifier.Classify(ctx, sub.Note)
	if err != nil {
		// No verdict: leave the record unclassified for the next pass
		// rather than mis-marking a possible emergency as OK.
		log.Warn("classification failed, leaving record unclassified",
			zap.Int64("object_id", sub.ObjectID),
			zap.Error(err),
		)
		report.Skipped++
		report.Failures = append(report.Failures, model.RecordFailure{
			ObjectID: sub.ObjectID,
			Stage:    model.StageClassify,
			Reason:   err.Error(),
		})
		return
	}

	flag := model.ClassificationFor(emergency)
	if err := r.writeFlag(ctx, sub.ObjectID, flag); err != nil {
		log.Warn("write rejected, leaving record unclassified",
			zap.Int64("object_id", sub.ObjectID),
			zap.Error(err),
		)
		report.Skipped++
		report.Failures = append(report.Failures, model.RecordFailure{
			ObjectID: sub.ObjectID,
			Stage:    model.StageUpdate,
			Reason:   err.Error(),
		})
		return
	}

	report.Processed++
	if emergency {
		report.Flagged++
		log.Info("submission flagged as emergency", zap.Int64("object_id", sub.ObjectID))
	} else {
		report.OK++
	}
}

func (r *Runner) writeFlag(ctx context.Context, objectID int64, flag model.Classification) error {
	results, err := r.layer.ApplyEdits(ctx, []arcgis.Update{{
		Attributes: map[string]any{
			r.fields.ObjectID: objectID,
			r.fields.Flag:     string(flag),
		},
	}})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return eris.Errorf("pipeline: no edit result for object %d", objectID)
	}
	if !results[0].Success {
		reason := "unknown"
		if results[0].Error != nil {
			reason = results[0].Error.Description
		}
		return eris.Errorf("pipeline: update rejected for object %d: %s", objectID, reason)
	}
	return nil
}

func (r *Runner) toSubmission(feat arcgis.Feature) (model.Submission, error) {
	return ToSubmission(feat, r.fields)
}

// ToSubmission maps a queried feature onto the Submission model. A missing
// or null note is treated as empty text, which classifies as non-emergency.
func ToSubmission(feat arcgis.Feature, fields FieldMap) (model.Submission, error) {
	oid, ok := numericAttr(feat.Attributes[fields.ObjectID])
	if !ok {
		return model.Submission{}, eris.Errorf("pipeline: feature missing %s attribute", fields.ObjectID)
	}

	sub := model.Submission{ObjectID: oid}
	if v, ok := feat.Attributes[fields.Note].(string); ok {
		sub.Note = v
	}
	if v, ok := feat.Attributes[fields.Flag].(string); ok {
		sub.Flag = model.Classification(v)
	}
	if feat.Geometry != nil {
		sub.Geometry = &model.Point{X: feat.Geometry.X, Y: feat.Geometry.Y}
	}
	return sub, nil
}

// numericAttr extracts an integer identifier from a decoded JSON attribute.
func numericAttr(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
