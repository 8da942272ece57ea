package classify

import "context"

// Staged runs the keyword scan first and asks the model only when no alarm
// term matched. This keeps obvious emergencies fast and free while letting
// the model catch phrasing the term list misses.
type Staged struct {
	keyword *Keyword
	model   *Model
}

// NewStaged combines a keyword classifier with a model fallback.
func NewStaged(keyword *Keyword, model *Model) *Staged {
	return &Staged{keyword: keyword, model: model}
}

func (s *Staged) Name() string { return StrategyStaged }

func (s *Staged) Classify(ctx context.Context, text string) (bool, error) {
	if hit, _ := s.keyword.Classify(ctx, text); hit {
		return true, nil
	}
	return s.model.Classify(ctx, text)
}
