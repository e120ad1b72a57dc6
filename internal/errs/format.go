package errs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok {
		e = Wrap(KindIoError, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))
	if e.Hint != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", e.Hint))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", e.Kind))
	return sb.String()
}

// Payload is the JSON shape of response.error (spec.md 6).
type Payload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Hint    string            `json:"hint,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ToPayload converts err into the envelope's error{code,message,hint}
// shape. Returns nil if err is nil.
func ToPayload(err error) *Payload {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		return &Payload{Code: string(KindIoError), Message: err.Error()}
	}
	return &Payload{
		Code:    string(e.Kind),
		Message: e.Message,
		Hint:    e.Hint,
		Details: e.Details,
	}
}

// FormatJSON returns the JSON representation of an error's Payload.
func FormatJSON(err error) ([]byte, error) {
	return json.Marshal(ToPayload(err))
}

// FormatForLog formats an error for structured logging (slog attrs).
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_kind": string(e.Kind),
		"message":    e.Message,
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	if e.Hint != "" {
		result["hint"] = e.Hint
	}
	for k, v := range e.Details {
		result["detail_"+k] = v
	}
	return result
}
