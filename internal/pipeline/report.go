package pipeline

import (
	"fmt"

	"github.com/reliefops/triage-cli/internal/model"
)

// Summary renders the one-line run summary printed on completion.
func Summary(r *model.Report) string {
	s := fmt.Sprintf("%d processed, %d flagged", r.Processed, r.Flagged)
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	return s
}
