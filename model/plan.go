package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var numberedStep = regexp.MustCompile(`^\d+[.)]\s+(.+)$`)

// Plan is the structured planning output handed to the execution stage.
type Plan struct {
	Summary       string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Steps         []string `json:"steps,omitempty" yaml:"steps,omitempty"`
	EstimatedCost float64  `json:"estimatedCost,omitempty" yaml:"estimatedCost,omitempty"`
}

// String renders the plan as prompt text.
func (p *Plan) String() string {
	if p == nil {
		return ""
	}
	builder := strings.Builder{}
	if p.Summary != "" {
		builder.WriteString(p.Summary)
	}
	for i, step := range p.Steps {
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("%d. %s", i+1, step))
	}
	return builder.String()
}

// PlanOf converts an adapter output into a Plan. Strings holding a JSON
// object, optionally fenced, are decoded; numbered lines of other text become
// steps and the remaining lines the summary.
func PlanOf(output interface{}) *Plan {
	switch actual := output.(type) {
	case nil:
		return &Plan{}
	case *Plan:
		return actual
	case Plan:
		return &actual
	case []string:
		return &Plan{Steps: append([]string(nil), actual...)}
	case []interface{}:
		ret := &Plan{}
		for _, item := range actual {
			ret.Steps = append(ret.Steps, fmt.Sprint(item))
		}
		return ret
	case string:
		text := strings.TrimSpace(actual)
		if candidate := unfence(text); strings.HasPrefix(candidate, "{") {
			ret := &Plan{}
			if err := json.Unmarshal([]byte(candidate), ret); err == nil && (ret.Summary != "" || len(ret.Steps) > 0) {
				return ret
			}
		}
		return planOfText(text)
	case map[string]interface{}:
		data, err := json.Marshal(actual)
		if err == nil {
			ret := &Plan{}
			if err = json.Unmarshal(data, ret); err == nil {
				return ret
			}
		}
	}
	return &Plan{Summary: fmt.Sprint(output)}
}

func unfence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if index := strings.Index(text, "\n"); index != -1 {
		text = text[index+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func planOfText(text string) *Plan {
	ret := &Plan{}
	var summary []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if matched := numberedStep.FindStringSubmatch(line); matched != nil {
			ret.Steps = append(ret.Steps, strings.TrimSpace(matched[1]))
			continue
		}
		if line != "" {
			summary = append(summary, line)
		}
	}
	if len(ret.Steps) == 0 {
		return &Plan{Summary: text}
	}
	ret.Summary = strings.Join(summary, "\n")
	return ret
}

// Operation is one sub-operation of the execution stage.
type Operation struct {
	Index   int         `json:"index"`
	Command string      `json:"command"`
	Output  interface{} `json:"output,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// ExecutionReport aggregates the execution stage sub-operations.
type ExecutionReport struct {
	Operations []*Operation `json:"operations"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
}

// OK reports whether every operation succeeded.
func (r *ExecutionReport) OK() bool {
	return r != nil && r.Failed == 0 && len(r.Operations) > 0
}

// Errors returns failed operation messages.
func (r *ExecutionReport) Errors() []string {
	if r == nil {
		return nil
	}
	var ret []string
	for _, op := range r.Operations {
		if op.Error != nil {
			ret = append(ret, fmt.Sprintf("operation %d (%s): %s", op.Index, op.Command, op.Error.Message))
		}
	}
	return ret
}
