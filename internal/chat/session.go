// Package chat builds the single-turn assistant prompt and streams the
// completion. There is no conversation memory: every turn rebuilds the
// preamble from whatever system is currently selected.
package chat

import (
	"encoding/json"
	"fmt"

	"watershed/api/internal/dataset"
)

const preamble = "You are a helpful AI assistant for water system compliance. "

// ViolationSummary is the redacted violation view shared with the model:
// name, contaminant, and status only. Message and task content never
// leaves the store.
type ViolationSummary struct {
	Name        string `json:"name"`
	Contaminant string `json:"contaminant"`
	Status      string `json:"status"`
}

// SystemContext is the selected-system context embedded in the prompt.
type SystemContext struct {
	Name       string             `json:"name"`
	ID         string             `json:"id"`
	Population json.Number        `json:"population"`
	Violations []ViolationSummary `json:"violations"`
}

// BuildPrompt assembles the outgoing prompt. With no system selected only
// the generic preamble frames the question.
func BuildPrompt(system *dataset.WaterSystem, userMessage string) string {
	context := preamble
	if system != nil {
		sc := SystemContext{
			Name:       system.Name,
			ID:         system.PWSID,
			Population: system.PopulationServed(),
			Violations: []ViolationSummary{},
		}
		for _, v := range system.ActualViolations() {
			sc.Violations = append(sc.Violations, ViolationSummary{
				Name:        v.Name,
				Contaminant: v.ContaminantName,
				Status:      v.Status,
			})
		}
		encoded, err := json.Marshal(sc)
		if err == nil {
			context += fmt.Sprintf("The user is currently viewing the following water system: %s. Please use this information to answer their question.", encoded)
		}
	}
	return fmt.Sprintf("%s\n\nUser Question: %q", context, userMessage)
}
