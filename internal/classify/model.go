package classify

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/resilience"
	"github.com/reliefops/triage-cli/pkg/anthropic"
)

const triageSystemPrompt = "You are an emergency triage system. Your task is to identify " +
	"immediate, life-threatening emergencies or situations requiring urgent medical " +
	"attention. Respond with the single word 'EMERGENCY' if the text mentions things " +
	"like being trapped, fire, serious injury, can't breathe, heart attack, stroke, or " +
	"a critical need for medical equipment or treatment. For all other cases, respond " +
	"with the single word 'OK'."

const (
	defaultModel       = "claude-haiku-4-5-20251001"
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 2 // one retry on transient failure
)

// Model delegates the verdict to the Anthropic Messages API. Every failure
// surfaces as a ServiceError so the caller leaves the record unclassified.
type Model struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	retry   resilience.RetryConfig
}

// NewModel creates a remote-model classifier with a bounded per-attempt
// timeout and at most one retry on transient failures.
func NewModel(client anthropic.Client, cfg Config) *Model {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	return &Model{
		client:  client,
		model:   model,
		timeout: timeout,
		retry: resilience.RetryConfig{
			MaxAttempts: attempts,
			OnRetry:     resilience.RetryLogger("anthropic", "classify"),
		},
	}
}

func (m *Model) Name() string { return StrategyModel }

func (m *Model) Classify(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	verdict, err := resilience.DoVal(ctx, m.retry, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		temp := 0.0
		resp, err := m.client.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:       m.model,
			MaxTokens:   10,
			System:      triageSystemPrompt,
			Temperature: &temp,
			Messages: []anthropic.Message{
				{Role: "user", Content: text},
			},
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return false, &ServiceError{Err: err}
	}

	return parseVerdict(verdict)
}

// parseVerdict maps the model's reply onto the boolean flag. Anything other
// than a recognizable EMERGENCY/OK reply is a service failure, not an OK.
func parseVerdict(text string) (bool, error) {
	verdict := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(verdict, "EMERGENCY"):
		return true, nil
	case strings.Contains(verdict, "OK"):
		return false, nil
	default:
		zap.L().Warn("classify: unparseable model verdict", zap.String("verdict", verdict))
		return false, &ServiceError{Err: eris.Errorf("classify: unparseable verdict %q", text)}
	}
}
