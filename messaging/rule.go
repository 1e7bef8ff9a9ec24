package messaging

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/glimte/orderflow/contracts"
	"github.com/tidwall/gjson"
)

// Rule selects envelopes by source and detail type and decides what input
// the bound handler receives. An empty Sources or DetailTypes set matches
// any value.
type Rule struct {
	Name        string
	Sources     []string
	DetailTypes []string

	// InputPath projects part of the envelope, e.g. "$.detail.customerId".
	// "$" passes the whole envelope.
	InputPath string

	// Input replaces the envelope with a constant payload
	Input map[string]interface{}
}

// Binding is one (source, detailType) pair a rule listens for. Empty fields
// stand for any value.
type Binding struct {
	Source     string
	DetailType string
}

// Matches reports whether env satisfies source ∈ Sources AND detailType ∈ DetailTypes
func (r Rule) Matches(env *contracts.Envelope) bool {
	if env == nil {
		return false
	}
	if len(r.Sources) > 0 && !slices.Contains(r.Sources, env.Source) {
		return false
	}
	if len(r.DetailTypes) > 0 && !slices.Contains(r.DetailTypes, env.DetailType) {
		return false
	}
	return true
}

// Validate checks the rule can be registered
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if len(r.Sources) == 0 && len(r.DetailTypes) == 0 {
		return fmt.Errorf("rule %s must match at least one source or detail type", r.Name)
	}
	if r.InputPath != "" && r.Input != nil {
		return fmt.Errorf("rule %s: InputPath and Input are mutually exclusive", r.Name)
	}
	if r.InputPath != "" && r.InputPath != "$" && !strings.HasPrefix(r.InputPath, "$.") {
		return fmt.Errorf("rule %s: input path %q must start with $", r.Name, r.InputPath)
	}
	return nil
}

// Project builds the handler input for env
func (r Rule) Project(env *contracts.Envelope) (json.RawMessage, error) {
	if r.Input != nil {
		return json.Marshal(r.Input)
	}

	switch r.InputPath {
	case "":
		detail := env.Detail
		if detail == nil {
			detail = contracts.Detail{}
		}
		return json.Marshal(detail)
	case "$":
		return json.Marshal(env)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	result := gjson.GetBytes(raw, gjsonPath(r.InputPath))
	if !result.Exists() {
		return nil, fmt.Errorf("input path %s: field not found", r.InputPath)
	}
	return json.RawMessage(result.Raw), nil
}

// gjsonPath turns "$.a.b" into a gjson path whose segments are literal keys
func gjsonPath(inputPath string) string {
	segments := strings.Split(strings.TrimPrefix(inputPath, "$."), ".")
	for i, s := range segments {
		segments[i] = gjson.Escape(s)
	}
	return strings.Join(segments, ".")
}

// EventPattern renders the rule as an EventBridge event pattern
func (r Rule) EventPattern() (string, error) {
	pattern := make(map[string][]string, 2)
	if len(r.Sources) > 0 {
		pattern["source"] = r.Sources
	}
	if len(r.DetailTypes) > 0 {
		pattern["detail-type"] = r.DetailTypes
	}
	raw, err := json.Marshal(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event pattern for rule %s: %w", r.Name, err)
	}
	return string(raw), nil
}

// Bindings expands the rule into its (source, detailType) pairs
func (r Rule) Bindings() []Binding {
	sources := r.Sources
	if len(sources) == 0 {
		sources = []string{""}
	}
	detailTypes := r.DetailTypes
	if len(detailTypes) == 0 {
		detailTypes = []string{""}
	}

	bindings := make([]Binding, 0, len(sources)*len(detailTypes))
	for _, source := range sources {
		for _, detailType := range detailTypes {
			bindings = append(bindings, Binding{Source: source, DetailType: detailType})
		}
	}
	return bindings
}
