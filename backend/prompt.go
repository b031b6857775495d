package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Request context keys understood by the language model adapters.
const (
	ContextStage = "stage"
)

const (
	planningInstruction = `You are planning work for an execution backend that runs shell commands.
Reply with a JSON object {"summary": string, "steps": [string], "estimatedCost": number}.
Each step must be a single, independent shell command.`
	verificationInstruction = `You are verifying the outcome of executed operations.
Start your reply with PASS when every operation achieved the task goal, otherwise with FAIL, then summarise the results.`
	defaultInstruction = `You are a helpful assistant. Answer the task concisely.`
)

// Instruction returns the system instruction for the stage named in the
// request context.
func Instruction(request *Request) string {
	stage, _ := request.Context[ContextStage].(string)
	switch stage {
	case "planning":
		return planningInstruction
	case "verification":
		return verificationInstruction
	}
	return defaultInstruction
}

// Prompt renders the request prompt followed by its scalar context values.
func Prompt(request *Request) string {
	if len(request.Context) == 0 {
		return request.Prompt
	}
	keys := make([]string, 0, len(request.Context))
	for k := range request.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	builder := strings.Builder{}
	builder.WriteString(request.Prompt)
	builder.WriteString("\n\nContext:\n")
	for _, k := range keys {
		value := request.Context[k]
		switch value.(type) {
		case string, bool, int, int64, float64:
			builder.WriteString(fmt.Sprintf("- %s: %v\n", k, value))
		default:
			if data, err := json.Marshal(value); err == nil {
				builder.WriteString(fmt.Sprintf("- %s: %s\n", k, data))
			}
		}
	}
	return builder.String()
}

// ParseVerdict reads a PASS/FAIL verdict from the start of text. It returns
// nil when text carries no verdict.
func ParseVerdict(text string) *bool {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(normalized, "PASS"):
		return Passed(true)
	case strings.HasPrefix(normalized, "FAIL"):
		return Passed(false)
	}
	return nil
}

// TextResponse builds a response from language model text, attaching a
// verdict for verification requests.
func TextResponse(request *Request, text string, cost float64) *Response {
	ret := &Response{Output: text, Cost: cost}
	if stage, _ := request.Context[ContextStage].(string); stage == "verification" {
		ret.Passed = ParseVerdict(text)
	}
	return ret
}
