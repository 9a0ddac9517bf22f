package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/harun/apibridge/pkg/executor"
	"github.com/harun/apibridge/pkg/registry"
	"github.com/harun/apibridge/pkg/store"
)

// Content is one content block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the tools/call result. Tool failures are reported here
// with IsError set, never as JSON-RPC errors.
type CallToolResult struct {
	Content           []Content   `json:"content"`
	StructuredContent interface{} `json:"structuredContent,omitempty"`
	IsError           bool        `json:"isError"`
}

func textResult(text string, structured interface{}, isError bool) *CallToolResult {
	return &CallToolResult{
		Content:           []Content{{Type: "text", Text: text}},
		StructuredContent: structured,
		IsError:           isError,
	}
}

func jsonText(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// successResult wraps a built-in handler result.
func successResult(v interface{}) *CallToolResult {
	return textResult(jsonText(v), v, false)
}

// upstreamResult wraps a mapped upstream response.
func upstreamResult(r *executor.Result, isError bool) *CallToolResult {
	structured := map[string]interface{}{
		"status":  r.Status,
		"headers": r.Headers,
		"body":    r.Body,
	}
	if r.Truncated {
		structured["truncated"] = true
	}
	if isError {
		structured["kind"] = string(executor.UpstreamStatus)
	}
	return textResult(r.Text(), structured, isError)
}

// errorKind names the failure class of err for results and metrics.
func errorKind(err error) string {
	var (
		pe *registry.ProtocolError
		ee *executor.ExecutionError
		se *store.Error
		ve *descriptor.ValidationError
	)
	switch {
	case errors.As(err, &pe):
		return string(pe.Kind)
	case errors.As(err, &ee):
		return string(ee.Kind)
	case errors.As(err, &se):
		return string(se.Kind)
	case errors.As(err, &ve):
		return string(ve.Kind)
	}
	return "internal"
}

// errorResult maps any tool failure to an isError result.
func errorResult(err error) *CallToolResult {
	var ee *executor.ExecutionError
	if errors.As(err, &ee) && ee.Kind == executor.UpstreamStatus && ee.Result != nil {
		return upstreamResult(ee.Result, true)
	}

	structured := map[string]interface{}{
		"kind":    errorKind(err),
		"message": err.Error(),
	}

	var pe *registry.ProtocolError
	if errors.As(err, &pe) && len(pe.Fields) > 0 {
		structured["fields"] = pe.Fields
	}
	var ve *descriptor.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		structured["field"] = ve.Field
	}

	return textResult("Error: "+err.Error(), structured, true)
}
