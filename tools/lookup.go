// Knowledge lookup tool.
//
// Information Hiding:
// - Adapter transport and authentication hidden behind the knowledge package
// - Upstream failures internalized as readable output, never as errors

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/radiant/knowledge"
)

// LookupTool exposes a single knowledge adapter as a model-callable tool.
// Every execution succeeds: adapter failures surface as explanatory text
// in the output so a reasoning pass always has something to read.
type LookupTool struct {
	BaseTool
	adapter     knowledge.Adapter
	description string
}

// NewLookupTool wraps an adapter as a tool. The tool name is the adapter name.
func NewLookupTool(adapter knowledge.Adapter, description string) *LookupTool {
	return &LookupTool{
		adapter:     adapter,
		description: description,
	}
}

// Metadata returns the tool metadata.
func (t *LookupTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        t.adapter.Name(),
		Description: t.description,
		Parameters: []ToolParameter{
			{Name: "term", ParamType: "string", Description: "The clinical term or finding to look up", Required: true},
		},
	}
}

type lookupArgs struct {
	Term string `json:"term"`
}

// Validate validates the arguments.
func (t *LookupTool) Validate(args json.RawMessage) error {
	var a lookupArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Term) == "" {
		return fmt.Errorf("term cannot be empty")
	}
	return nil
}

// Execute performs the lookup.
func (t *LookupTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a lookupArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	term := strings.TrimSpace(a.Term)
	if term == "" {
		return FailureResultf("term cannot be empty"), nil
	}

	return SuccessResult(t.adapter.Lookup(ctx, term)), nil
}
