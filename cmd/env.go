package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/classify"
	"github.com/reliefops/triage-cli/internal/model"
	"github.com/reliefops/triage-cli/internal/pipeline"
	"github.com/reliefops/triage-cli/internal/store"
	"github.com/reliefops/triage-cli/pkg/anthropic"
	"github.com/reliefops/triage-cli/pkg/arcgis"
)

// triageEnv holds the initialized store, layer client, and runner shared by
// the run/watch/serve commands.
type triageEnv struct {
	Store    store.Store
	Layer    arcgis.Client
	Runner   *pipeline.Runner
	Strategy string
}

// Close releases resources held by the environment.
func (te *triageEnv) Close() {
	if te.Store != nil {
		_ = te.Store.Close()
	}
}

// initStore opens the run-history backend and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initLayer builds the feature layer client from config.
func initLayer() arcgis.Client {
	opts := []arcgis.Option{
		arcgis.WithRateLimit(cfg.ArcGIS.RateLimit, 5),
	}
	if cfg.ArcGIS.Token != "" {
		opts = append(opts, arcgis.WithToken(cfg.ArcGIS.Token))
	} else if cfg.ArcGIS.Username != "" {
		opts = append(opts, arcgis.WithPortalCredentials(cfg.ArcGIS.PortalURL, cfg.ArcGIS.Username, cfg.ArcGIS.Password))
	}
	return arcgis.NewClient(cfg.ArcGIS.LayerURL, opts...)
}

// fieldMap names the layer attributes from config.
func fieldMap() pipeline.FieldMap {
	return pipeline.FieldMap{
		ObjectID: cfg.ArcGIS.ObjectIDField,
		Note:     cfg.ArcGIS.NoteField,
		Flag:     cfg.ArcGIS.FlagField,
	}
}

// initClassifier builds the configured classification strategy. Terms from a
// terms file override the inline config list.
func initClassifier() (classify.Classifier, error) {
	terms := cfg.Classify.Terms
	if cfg.Classify.TermsFile != "" {
		loaded, err := classify.LoadTermsFile(cfg.Classify.TermsFile)
		if err != nil {
			return nil, err
		}
		terms = loaded
		zap.L().Info("loaded classification terms", zap.String("file", cfg.Classify.TermsFile), zap.Int("count", len(terms)))
	}

	var client anthropic.Client
	if cfg.Anthropic.Key != "" {
		client = anthropic.NewClient(cfg.Anthropic.Key)
	}

	return classify.New(classify.Config{
		Strategy:    cfg.Classify.Strategy,
		Terms:       terms,
		Model:       cfg.Classify.Model,
		Timeout:     time.Duration(cfg.Classify.TimeoutSecs) * time.Second,
		MaxAttempts: cfg.Classify.MaxAttempts,
	}, client)
}

// initTriage sets up the store, layer client, classifier, and runner.
// Callers should defer env.Close().
func initTriage(ctx context.Context) (*triageEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	classifier, err := initClassifier()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	layer := initLayer()

	opts := []pipeline.Option{pipeline.WithPageSize(cfg.ArcGIS.PageSize)}
	if cfg.ArcGIS.EnsureField {
		opts = append(opts, pipeline.WithEnsureFlagField())
	}

	return &triageEnv{
		Store:    st,
		Layer:    layer,
		Runner:   pipeline.New(layer, classifier, fieldMap(), opts...),
		Strategy: classifier.Name(),
	}, nil
}

// executePass runs one triage pass with run-history bookkeeping.
func executePass(ctx context.Context, env *triageEnv) (*model.Run, error) {
	run, err := env.Store.CreateRun(ctx, env.Strategy)
	if err != nil {
		return nil, eris.Wrap(err, "record run start")
	}

	report, err := env.Runner.Run(ctx)
	if err != nil {
		if ferr := env.Store.FailRun(ctx, run.ID, err); ferr != nil {
			zap.L().Error("record run failure", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, err
	}

	if err := env.Store.CompleteRun(ctx, run.ID, report); err != nil {
		return nil, eris.Wrap(err, "record run completion")
	}

	run.Status = model.RunStatusComplete
	run.Report = report
	return run, nil
}
