package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCurrentDelivery is returned by CurrentDelivery when the mechanic has no
// delivery in progress. It is an expected outcome, not a failure.
var ErrNoCurrentDelivery = errors.New("no current delivery")

// Error is a non-2xx answer from the backend.
type Error struct {
	Op     string
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Status, e.Detail)
}

// parseDetail extracts the "detail" field of an error body. The backend sends
// either a plain string or a list of validation entries with a "msg" field.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
