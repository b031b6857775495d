package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/service/audit"
)

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func statusColor(status model.ResultStatus) color.Attribute {
	switch status {
	case model.ResultCompleted:
		return color.FgGreen
	case model.ResultAwaitingApproval, model.ResultInProgress:
		return color.FgYellow
	}
	return color.FgRed
}

func statusSymbol(status model.ResultStatus) string {
	switch status {
	case model.ResultCompleted:
		return "✓"
	case model.ResultAwaitingApproval, model.ResultInProgress:
		return "⚠"
	}
	return "✗"
}

func printResult(result *model.Result) {
	printSummary(result)
	for _, warning := range result.Warnings {
		printStatus("⚠", warning, color.FgYellow)
	}
	for _, stage := range result.Stages {
		attr := color.FgGreen
		switch stage.Status {
		case model.StageFailed:
			attr = color.FgRed
		case model.StageAwaitingApproval:
			attr = color.FgYellow
		}
		line := fmt.Sprintf("%-12s %-14s %s", stage.Kind, stage.Backend, stage.EndedAt.Sub(stage.StartedAt).Round(time.Millisecond))
		if stage.Error != nil {
			line += "  " + stage.Error.Error()
		}
		printStatus("  •", line, attr)
	}
	for _, ref := range result.Approvals {
		printStatus("  ?", fmt.Sprintf("%s: %s [request %s]", ref.Guardrail, ref.Message, ref.RequestID), color.FgYellow)
	}
	if result.Output != nil {
		fmt.Printf("\n%s\n", output(result.Output))
	}
}

func printSummary(result *model.Result) {
	message := fmt.Sprintf("%s %s", color.New(color.Bold).Sprint(result.Status), result.RunID)
	if result.Target != "" {
		message += " → " + string(result.Target)
	}
	if result.Reason != "" && result.Status != model.ResultCompleted {
		message += ": " + result.Reason
	}
	printStatus(statusSymbol(result.Status), message, statusColor(result.Status))
}

func printEvent(event *audit.Event) {
	line := fmt.Sprintf("%s %-9s %-20s %-12s %s", event.Timestamp.Format("15:04:05.000"), event.Kind, event.Name, event.Actor, event.Detail)
	if event.ApprovedBy != "" {
		line += " (approved by " + event.ApprovedBy + ")"
	}
	attr := color.FgWhite
	switch {
	case event.Detail == "triggered" || event.Detail == "rejected" || event.Detail == string(model.StageFailed):
		attr = color.FgRed
	case event.Kind == audit.KindApproval:
		attr = color.FgYellow
	}
	fmt.Println(color.New(attr).Sprint(line))
}

func output(value interface{}) string {
	switch actual := value.(type) {
	case string:
		return strings.TrimSpace(actual)
	case fmt.Stringer:
		return actual.String()
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

func printJSON(value interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
