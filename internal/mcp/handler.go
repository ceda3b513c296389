package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// requireID extracts a positive integer id argument.
func requireID(request mcp.CallToolRequest) (int64, error) {
	id, err := request.RequireInt("id")
	if err != nil || id < 1 {
		return 0, fmt.Errorf("parameter %q must be a positive integer", "id")
	}
	return int64(id), nil
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. It is shown to the model and
// does not end the session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// clamp constrains val to [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// window returns the first limit items of s.
func window[T any](s []T, limit int) []T {
	if limit < len(s) {
		return s[:limit]
	}
	return s
}
