package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassify(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		text  string
		want  bool
	}{
		{"alarm_term_present", nil, "Building on fire, people trapped", true},
		{"routine_text", nil, "Routine supply request", false},
		{"empty_text", nil, "", false},
		{"case_insensitive", nil, "FLOOD rising fast", true},
		{"mixed_case_term", []string{"Fire"}, "small fire in kitchen", true},
		{"substring_match", nil, "firefighters on scene", true},
		{"custom_terms_only", []string{"landslide"}, "fire reported", false},
		{"custom_terms_hit", []string{"landslide"}, "Landslide blocking road", true},
		{"unicode_folding", []string{"straße"}, "Wasser in der STRASSE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKeyword(tt.terms)
			got, err := k.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordIgnoresBlankTerms(t *testing.T) {
	k := NewKeyword([]string{"  ", "flood", ""})
	got, err := k.Classify(context.Background(), "all quiet here")
	require.NoError(t, err)
	assert.False(t, got)

	got, err = k.Classify(context.Background(), "flood warning")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNew_StrategySelection(t *testing.T) {
	c, err := New(Config{Strategy: StrategyKeyword}, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyword, c.Name())

	_, err = New(Config{Strategy: StrategyModel}, nil)
	require.Error(t, err)

	_, err = New(Config{Strategy: "regex"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}
