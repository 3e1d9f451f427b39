// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"conversation-workers/internal/common/errors"
	"conversation-workers/internal/common/validation"
)

//go:embed activities.json
var defaultRegistry []byte

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Default returns the activity catalogue compiled into the binary.
func Default() (*ActivityRegistry, error) {
	return parse(defaultRegistry)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse activity registry: %w", err)
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validator compiles the input schema of every activity.
func (r *ActivityRegistry) Validator() (*validation.Validator, error) {
	v := validation.NewValidator()
	for _, a := range r.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		if err := v.Register(a.TaskType, a.InputSchema); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Check reports every structural problem in the catalogue, such as duplicate
// ids, task types that break the naming rules, error codes without a BPMN
// mapping and input schemas that do not compile.
func (r *ActivityRegistry) Check() []error {
	var problems []error
	if len(r.Activities) == 0 {
		return append(problems, fmt.Errorf("registry contains no activities"))
	}

	ids := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			problems = append(problems, fmt.Errorf("activity missing required field: id"))
			continue
		}
		if ids[a.ID] {
			problems = append(problems, fmt.Errorf("duplicate activity id: %s", a.ID))
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			problems = append(problems, fmt.Errorf("activity %s missing required field: displayName", a.ID))
		}
		if err := validation.ValidateActivityNaming(a.TaskType); err != nil {
			problems = append(problems, fmt.Errorf("activity %s: %w", a.ID, err))
		}
		for _, code := range a.ErrorCodes {
			if _, ok := errors.BPMNErrorMapping[errors.ErrorCode(code)]; !ok {
				problems = append(problems, fmt.Errorf("activity %s: error code %s has no BPMN mapping", a.ID, code))
			}
		}
		if len(a.InputSchema) > 0 {
			if err := validation.NewValidator().Register(a.TaskType, a.InputSchema); err != nil {
				problems = append(problems, fmt.Errorf("activity %s: %w", a.ID, err))
			}
			if !a.DeclaresErrorCode(string(errors.ErrCodeInputValidationFailed)) {
				problems = append(problems, fmt.Errorf("activity %s: schema failures need %s in errorCodes", a.ID, errors.ErrCodeInputValidationFailed))
			}
		}
		if a.Timeout != "" && a.TimeoutDuration() <= 0 {
			problems = append(problems, fmt.Errorf("activity %s: invalid timeout %q", a.ID, a.Timeout))
		}
	}
	return problems
}
