package executor

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/insightloop/glean/pkg/models"
)

var outputNamePattern = regexp.MustCompile(`^\$[A-Za-z_][A-Za-z0-9_]*$`)

// IsChained reports whether a plan uses step-ordered execution.
func IsChained(requests []models.DataRequest) bool {
	for i := range requests {
		if requests[i].Step > 0 {
			return true
		}
	}
	return false
}

// ValidatePlan checks the structural invariants of an AI-generated plan
// before anything executes. A violation fails the whole plan; per-request
// runtime failures are handled later and never abort execution.
func ValidatePlan(requests []models.DataRequest) error {
	if len(requests) == 0 {
		return fmt.Errorf("plan contains no data requests")
	}
	if !IsChained(requests) {
		return nil
	}

	// Step values must be exactly {1..N}.
	steps := make([]int, 0, len(requests))
	byStep := make(map[int]*models.DataRequest, len(requests))
	for i := range requests {
		r := &requests[i]
		if r.Step <= 0 {
			return fmt.Errorf("request %d is missing a step in a chained plan", i+1)
		}
		if _, dup := byStep[r.Step]; dup {
			return fmt.Errorf("duplicate step %d", r.Step)
		}
		byStep[r.Step] = r
		steps = append(steps, r.Step)
	}
	sort.Ints(steps)
	for i, s := range steps {
		if s != i+1 {
			return fmt.Errorf("step values must be contiguous from 1, got %v", steps)
		}
	}

	outputNames := make(map[string]int, len(requests))
	for _, r := range byStep {
		if r.DependsOn != 0 {
			if r.DependsOn < 1 || r.DependsOn >= r.Step {
				return fmt.Errorf("step %d dependsOn %d must reference an earlier step", r.Step, r.DependsOn)
			}
		}
		if r.OutputAs != "" {
			if !outputNamePattern.MatchString(r.OutputAs) {
				return fmt.Errorf("step %d outputAs %q is not a valid $name", r.Step, r.OutputAs)
			}
			if prev, dup := outputNames[r.OutputAs]; dup {
				return fmt.Errorf("outputAs %q declared by both step %d and step %d", r.OutputAs, prev, r.Step)
			}
			outputNames[r.OutputAs] = r.Step
		}
	}

	// Every placeholder in a step's SQL must be produced by an ancestor
	// reachable over the dependsOn chain.
	for _, r := range byStep {
		if r.Kind != models.RequestSQLQuery || r.SQL == "" {
			continue
		}
		for _, token := range placeholderPattern.FindAllString(r.SQL, -1) {
			if !ancestorDeclares(byStep, r, token) {
				return fmt.Errorf("step %d references %s, which no ancestor step outputs", r.Step, token)
			}
		}
	}
	return nil
}

func ancestorDeclares(byStep map[int]*models.DataRequest, r *models.DataRequest, name string) bool {
	for dep := r.DependsOn; dep != 0; {
		ancestor, ok := byStep[dep]
		if !ok {
			return false
		}
		if ancestor.OutputAs == name {
			return true
		}
		dep = ancestor.DependsOn
	}
	return false
}
