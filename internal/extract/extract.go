package extract

import (
	"fmt"

	"cometrelay/internal/model"
	"cometrelay/internal/route"
)

// MissingFieldError indicates a required field label is absent from the
// event entirely. This is distinct from EmptyFieldError so the caller can
// tell an upstream form change apart from a blank answer.
type MissingFieldError struct {
	Form  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("form %q: required field %q missing from event", e.Form, e.Field)
}

// EmptyFieldError indicates a required field is present but every recorded
// value is empty.
type EmptyFieldError struct {
	Form  string
	Field string
}

func (e *EmptyFieldError) Error() string {
	return fmt.Sprintf("form %q: required field %q has no non-empty value", e.Form, e.Field)
}

// Extract builds the request payload for a routed event. The payload holds
// the route's action under "action" plus exactly one value per required
// field. For each field the first non-empty recorded value wins; a form
// response edited after submission keeps its empty historical revision
// alongside the live answer. The event is never mutated and no field is ever
// substituted with a default.
func Extract(event *model.InboundEvent, r *route.Route) (model.RequestPayload, error) {
	payload := make(model.RequestPayload, len(r.RequiredFields)+1)
	payload["action"] = string(r.Action)

	for _, field := range r.RequiredFields {
		values, ok := event.NamedValues[field]
		if !ok {
			return nil, &MissingFieldError{Form: r.Form, Field: field}
		}
		value := FirstNonEmpty(values)
		if value == "" {
			return nil, &EmptyFieldError{Form: r.Form, Field: field}
		}
		payload[field] = value
	}

	return payload, nil
}

// FirstNonEmpty returns the first entry with non-zero length, or ""
func FirstNonEmpty(values []string) string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return ""
}
