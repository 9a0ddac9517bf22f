package descriptor

import (
	"bytes"
	"encoding/json"
)

// Patch is a field-level update. Nil fields are left untouched; slices and
// maps replace the existing value wholesale.
type Patch struct {
	Name           *string            `json:"new_name,omitempty"`
	Description    *string            `json:"description,omitempty"`
	BaseURL        *string            `json:"base_url,omitempty"`
	Path           *string            `json:"path,omitempty"`
	Method         *Method            `json:"method,omitempty"`
	Parameters     *[]Parameter       `json:"parameters,omitempty"`
	RequestBody    *RequestBody       `json:"request_body,omitempty"`
	Responses      *[]Response        `json:"responses,omitempty"`
	Authentication *Authentication    `json:"authentication,omitempty"`
	Headers        *map[string]string `json:"headers,omitempty"`
	Tags           *[]string          `json:"tags,omitempty"`

	// RemoveRequestBody clears the request body; set by an explicit
	// "request_body": null.
	RemoveRequestBody bool `json:"-"`
}

// UnmarshalJSON distinguishes an absent request_body from an explicit null.
func (p *Patch) UnmarshalJSON(data []byte) error {
	type plain Patch
	aux := struct {
		*plain
		RequestBody json.RawMessage `json:"request_body,omitempty"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.RequestBody)
	switch {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		p.RemoveRequestBody = true
	default:
		var rb RequestBody
		if err := json.Unmarshal(raw, &rb); err != nil {
			return err
		}
		p.RequestBody = &rb
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.BaseURL == nil && p.Path == nil &&
		p.Method == nil && p.Parameters == nil && p.RequestBody == nil && p.Responses == nil &&
		p.Authentication == nil && p.Headers == nil && p.Tags == nil && !p.RemoveRequestBody
}

// ApplyTo merges the patch into d. Identity fields (ID, Status, CreatedAt)
// are never touched.
func (p *Patch) ApplyTo(d *Descriptor) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.BaseURL != nil {
		d.BaseURL = *p.BaseURL
	}
	if p.Path != nil {
		d.Path = *p.Path
	}
	if p.Method != nil {
		d.Method = *p.Method
	}
	if p.Parameters != nil {
		d.Parameters = append([]Parameter(nil), (*p.Parameters)...)
	}
	if p.RemoveRequestBody {
		d.RequestBody = nil
	} else if p.RequestBody != nil {
		rb := *p.RequestBody
		d.RequestBody = &rb
	}
	if p.Responses != nil {
		d.Responses = append([]Response(nil), (*p.Responses)...)
	}
	if p.Authentication != nil {
		d.Authentication = *p.Authentication
	}
	if p.Headers != nil {
		headers := make(map[string]string, len(*p.Headers))
		for k, v := range *p.Headers {
			headers[k] = v
		}
		d.Headers = headers
	}
	if p.Tags != nil {
		d.Tags = append([]string(nil), (*p.Tags)...)
	}
}
