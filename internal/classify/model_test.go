package classify

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefops/triage-cli/internal/resilience"
	"github.com/reliefops/triage-cli/pkg/anthropic"
)

// fakeAnthropicClient returns scripted responses per call.
type fakeAnthropicClient struct {
	calls     int
	responses []fakeResponse
	lastReq   anthropic.MessageRequest
}

type fakeResponse struct {
	text string
	err  error
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++

	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: r.text}},
	}, nil
}

func newTestModel(client anthropic.Client) *Model {
	m := NewModel(client, Config{Timeout: time.Second})
	m.retry.InitialBackoff = time.Millisecond
	return m
}

func TestModelClassify_Verdicts(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    bool
		wantErr bool
	}{
		{"emergency", "EMERGENCY", true, false},
		{"ok", "OK", false, false},
		{"verbose_emergency", "This is an EMERGENCY.", true, false},
		{"lowercase_ok", "ok", false, false},
		{"unparseable", "I cannot determine that.", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeAnthropicClient{responses: []fakeResponse{{text: tt.reply}}}
			m := newTestModel(client)

			got, err := m.Classify(context.Background(), "water rising in the basement")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsService(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelClassify_EmptyTextSkipsCall(t *testing.T) {
	client := &fakeAnthropicClient{responses: []fakeResponse{{text: "EMERGENCY"}}}
	m := newTestModel(client)

	got, err := m.Classify(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 0, client.calls)
}

func TestModelClassify_RetriesOnceOnTransient(t *testing.T) {
	client := &fakeAnthropicClient{responses: []fakeResponse{
		{err: resilience.NewTransientError(eris.New("overloaded"), 529)},
		{text: "OK"},
	}}
	m := newTestModel(client)

	got, err := m.Classify(context.Background(), "is the shelter open?")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 2, client.calls)
}

func TestModelClassify_PermanentFailureIsServiceError(t *testing.T) {
	client := &fakeAnthropicClient{responses: []fakeResponse{
		{err: eris.New("invalid api key")},
	}}
	m := newTestModel(client)

	_, err := m.Classify(context.Background(), "help needed")
	require.Error(t, err)
	assert.True(t, IsService(err))
	assert.Equal(t, 1, client.calls)
}

func TestModelClassify_SendsTriagePrompt(t *testing.T) {
	client := &fakeAnthropicClient{responses: []fakeResponse{{text: "OK"}}}
	m := newTestModel(client)

	_, err := m.Classify(context.Background(), "road closed by fallen tree")
	require.NoError(t, err)
	assert.Contains(t, client.lastReq.System, "emergency triage")
	require.Len(t, client.lastReq.Messages, 1)
	assert.Equal(t, "road closed by fallen tree", client.lastReq.Messages[0].Content)
	require.NotNil(t, client.lastReq.Temperature)
	assert.Zero(t, *client.lastReq.Temperature)
}

func TestStagedClassify(t *testing.T) {
	t.Run("keyword_hit_skips_model", func(t *testing.T) {
		client := &fakeAnthropicClient{responses: []fakeResponse{{text: "OK"}}}
		s := NewStaged(NewKeyword(nil), newTestModel(client))

		got, err := s.Classify(context.Background(), "house on fire")
		require.NoError(t, err)
		assert.True(t, got)
		assert.Equal(t, 0, client.calls)
	})

	t.Run("falls_through_to_model", func(t *testing.T) {
		client := &fakeAnthropicClient{responses: []fakeResponse{{text: "EMERGENCY"}}}
		s := NewStaged(NewKeyword(nil), newTestModel(client))

		got, err := s.Classify(context.Background(), "grandmother not responding to knocks")
		require.NoError(t, err)
		assert.True(t, got)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("model_failure_propagates", func(t *testing.T) {
		client := &fakeAnthropicClient{responses: []fakeResponse{{err: eris.New("boom")}}}
		s := NewStaged(NewKeyword(nil), newTestModel(client))

		_, err := s.Classify(context.Background(), "strange smell in the hallway")
		require.Error(t, err)
		assert.True(t, IsService(err))
	})
}
