package dispatch

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/alvin/oracle-db-mcp/internal/oracle"
)

// successResult wraps a payload as an isError=false envelope with the payload
// serialized as indented JSON text.
func successResult(payload any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResult(&oracle.OpError{Message: "failed to serialize result: " + err.Error()})
	}
	return mcp.NewToolResultText(string(data))
}

// errorResult wraps an operation error as an isError=true envelope.
func errorResult(opErr *oracle.OpError) *mcp.CallToolResult {
	data, err := json.MarshalIndent(struct {
		Error *oracle.OpError `json:"error"`
	}{opErr}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(opErr.Message)
	}
	return mcp.NewToolResultError(string(data))
}
