package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
)

// OptionalString tracks presence and value for JSON PATCH semantics (RFC 7396).
// This enables proper tri-state handling that Go's *string cannot express:
//   - Present=false: field absent from JSON (don't change)
//   - Present=true, Value=nil: field is JSON null (clear)
//   - Present=true, Value=&"": field is empty string
//   - Present=true, Value=&"text": field has value
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON implements json.Unmarshaler.
// When this method is called, the field was present in the JSON.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Apply writes the patch into dst. Null clears it to "".
func (o OptionalString) Apply(dst *string) {
	if !o.Present {
		return
	}
	if o.Value == nil {
		*dst = ""
		return
	}
	*dst = *o.Value
}

// OptionalBool is the boolean counterpart of OptionalString. Null is rejected; a flag
// cannot be cleared.
type OptionalBool struct {
	Present bool
	Value   bool
}

func (o *OptionalBool) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(bytes.TrimSpace(data)) == "null" {
		return errors.New("boolean field cannot be null")
	}
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalBool) Apply(dst *bool) {
	if o.Present {
		*dst = o.Value
	}
}
