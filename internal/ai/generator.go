package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftlab/stockflow/internal/model"
	"github.com/driftlab/stockflow/internal/patch"
	"github.com/driftlab/stockflow/pkg/dsl"
)

const systemPrompt = `You are an expert system dynamics modeler. Your task is to generate model modifications in JSON format.

You must output ONLY valid JSON in this exact format:
{
  "changes": [
    {
      "op": "add_state" | "update_state" | "remove_state" | "add_relation" | "update_relation" | "remove_relation" | "add_parameter" | "update_parameter" | "remove_parameter" | "add_equation" | "update_equation" | "remove_equation" | "add_scenario" | "update_scenario" | "remove_scenario",
      "symbol": "STATE_SYMBOL",
      "id": "unique_id",
      "data": { ... },
      "reason": "Clear explanation"
    }
  ]
}

Rules:
1. Output ONLY JSON, no markdown, no explanations
2. All new state symbols must be short uppercase identifiers not already used
3. All IDs must be unique (e.g., "rel.A_to_B")
4. Equations must use DSL syntax: p.param_name, %s
5. Initial values must be between 0 and 1
6. Coefficients should typically be between -1 and 1
7. Categories: %s
8. Every new state needs a matching add_equation change
9. Provide a clear "reason" for each change`

// Request is one patch-generation call.
type Request struct {
	Prompt        string   `json:"prompt"`
	SelectedNodes []string `json:"selected_nodes,omitempty"`
	Context       string   `json:"context,omitempty"`
}

// Generator turns prompts into draft changes.
type Generator struct {
	client *Client
}

// NewGenerator wraps a client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Healthy reports whether the backing model is available.
func (g *Generator) Healthy(ctx context.Context) bool {
	return g.client.Healthy(ctx)
}

// GeneratePatch asks the model for changes implementing the request against
// the current model. The response is only structurally decoded here; semantic
// validation happens when the changes are merged as a draft.
func (g *Generator) GeneratePatch(ctx context.Context, req Request, m *model.Model) ([]patch.Change, error) {
	system := fmt.Sprintf(systemPrompt,
		strings.Join(dsl.AllowedFunctions(), "(), ")+"()",
		strings.Join(model.Categories, ", "))

	response, err := g.client.Generate(ctx, buildUserPrompt(req, m), system)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Changes []patch.Change `json:"changes"`
	}
	cleaned := stripFences(response)
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("ai response is not a valid patch: %w", err)
	}
	if payload.Changes == nil {
		return nil, fmt.Errorf("ai response has no changes array")
	}

	for i, change := range payload.Changes {
		if !change.Op.Valid() {
			return nil, fmt.Errorf("ai change %d has unknown op %q", i, change.Op)
		}
	}
	return payload.Changes, nil
}

func buildUserPrompt(req Request, m *model.Model) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current model state:\n")
	fmt.Fprintf(&b, "- Existing states: %s\n", strings.Join(m.StateSymbols(), ", "))
	fmt.Fprintf(&b, "- Existing parameters: %s\n", strings.Join(m.ParameterNames(), ", "))
	fmt.Fprintf(&b, "- Number of relations: %d\n", len(m.Relations))

	if len(req.SelectedNodes) > 0 {
		fmt.Fprintf(&b, "\nSelected nodes for context: %s", strings.Join(req.SelectedNodes, ", "))
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "\nAdditional context: %s", req.Context)
	}

	fmt.Fprintf(&b, "\n\nUser request: %s\n\n", req.Prompt)
	b.WriteString(`Generate a JSON patch with the necessary changes to implement this request. Remember:
- Use only available states or add new ones
- Reference existing parameters or add new ones
- Provide clear reasons for each change
- Ensure all equations use valid DSL syntax

Output only the JSON patch:`)

	return b.String()
}

// stripFences removes a surrounding markdown code block if the model wrapped
// its output in one.
func stripFences(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}

	lines := strings.Split(response, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
