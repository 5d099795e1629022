package executor

import (
	"fmt"
	"strings"

	"github.com/cbergstrom/laddr/pkg/models"
)

// TierFailure pairs a tier with the final-attempt reason it failed for.
type TierFailure struct {
	Tier   models.Tier `json:"tier"`
	Reason string      `json:"reason"`
}

// ExhaustedError reports that a stage failed quality gates at every tier
// up to and including the terminal one. It is fatal for the stage; the
// caller decides whether it is fatal for the run.
type ExhaustedError struct {
	Stage string
	Tried []TierFailure
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Tried))
	for _, f := range e.Tried {
		reason := f.Reason
		if reason == "" {
			reason = "quality gate not satisfied"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Tier, reason))
	}
	return fmt.Sprintf("stage %s exhausted the tier ladder (%s)", e.Stage, strings.Join(parts, "; "))
}
