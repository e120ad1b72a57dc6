package envelope

import (
	"encoding/json"
	"io"
)

// StreamEnvelope is the line-delimited envelope head (spec.md 6:
// "one object for the envelope (without results), then one object per
// result. No trailing comma, no wrapping array").
type StreamEnvelope struct {
	OK            bool           `json:"ok"`
	SchemaVersion int            `json:"schema_version"`
	Query         *QueryEcho     `json:"query,omitempty"`
	Context       *ContextEntry  `json:"context,omitempty"`
	Stats         *StatsEntry    `json:"stats,omitempty"`
	Warnings      []WarningEntry `json:"warnings,omitempty"`
	Error         *ErrorEntry    `json:"error,omitempty"`
	Explain       *ExplainEntry  `json:"explain,omitempty"`
}

// WriteStream writes env as line-delimited JSON to w: the envelope head
// (with Results omitted) on its own line, then one ResultEntry per line.
func WriteStream(w io.Writer, env *Envelope) error {
	enc := json.NewEncoder(w)

	head := StreamEnvelope{
		OK:            env.OK,
		SchemaVersion: env.SchemaVersion,
		Query:         env.Query,
		Context:       env.Context,
		Stats:         env.Stats,
		Warnings:      env.Warnings,
		Error:         env.Error,
		Explain:       env.Explain,
	}
	if err := enc.Encode(head); err != nil {
		return err
	}

	for _, r := range env.Results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
