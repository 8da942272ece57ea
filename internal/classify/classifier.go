// Package classify maps citizen report text to an emergency verdict. The
// strategy is selected by configuration: a keyword scan, a remote model
// call, or the staged combination of the two.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reliefops/triage-cli/pkg/anthropic"
)

// Classifier decides whether a report's free text describes an emergency.
type Classifier interface {
	// Classify returns true for an emergency. A ServiceError means no
	// verdict was reached; the record must stay unclassified.
	Classify(ctx context.Context, text string) (bool, error)
	// Name identifies the strategy for logs and run records.
	Name() string
}

// ServiceError wraps a remote classification failure (timeout, non-2xx,
// unparseable verdict). Callers skip the record rather than defaulting to OK.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return "classify: service failure: " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsService reports whether err is a remote classification failure.
func IsService(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// Strategy names accepted by Config.Strategy.
const (
	StrategyKeyword = "keyword"
	StrategyModel   = "model"
	StrategyStaged  = "staged"
)

// Config selects and parameterizes a classification strategy.
type Config struct {
	Strategy    string
	Terms       []string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// New builds the configured classifier. The anthropic client may be nil for
// the keyword strategy.
func New(cfg Config, client anthropic.Client) (Classifier, error) {
	switch cfg.Strategy {
	case StrategyKeyword:
		return NewKeyword(cfg.Terms), nil
	case StrategyModel:
		if client == nil {
			return nil, eris.New("classify: model strategy requires an anthropic client")
		}
		return NewModel(client, cfg), nil
	case StrategyStaged:
		if client == nil {
			return nil, eris.New("classify: staged strategy requires an anthropic client")
		}
		return NewStaged(NewKeyword(cfg.Terms), NewModel(client, cfg)), nil
	default:
		return nil, eris.Errorf("classify: unknown strategy %q", cfg.Strategy)
	}
}
