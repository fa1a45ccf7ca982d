package usage

import (
	"fmt"

	"github.com/dmitrymomot/nutrilabel/internal/plan"
)

// QuotaExceededError is returned when the monthly limit for a resource is reached.
type QuotaExceededError struct {
	Resource plan.Resource
	Limit    int
	Used     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly %s quota exceeded: %d of %d used", e.Resource, e.Used, e.Limit)
}

// FeatureUnavailableError is returned when the plan lacks a binary capability.
type FeatureUnavailableError struct {
	Feature plan.Feature
	PlanID  string
}

func (e *FeatureUnavailableError) Error() string {
	return fmt.Sprintf("plan %q does not include %s", e.PlanID, e.Feature)
}
