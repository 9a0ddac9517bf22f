package descriptor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Method is an HTTP verb accepted for a descriptor.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods lists every supported method in display order.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions}

// ParseMethod parses a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("invalid HTTP method: %s", s)
	}
	return m, nil
}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Location says where a parameter value is placed in the outbound request.
type Location string

const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InHeader Location = "header"
)

// Valid reports whether l is a supported location.
func (l Location) Valid() bool {
	switch l {
	case InPath, InQuery, InHeader:
		return true
	}
	return false
}

// Status controls whether a descriptor is exposed as a tool.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusEnabled || s == StatusDisabled
}

// ParameterTypes are the JSON Schema primitive types a parameter may declare.
var ParameterTypes = []string{"string", "integer", "number", "boolean", "array", "object"}

// Parameter is one caller-supplied argument bound into the request.
type Parameter struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	In          Location      `json:"in"`
	Required    bool          `json:"required"`
	Type        string        `json:"type,omitempty"`
	Default     interface{}   `json:"default,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

// UnmarshalJSON accepts "location" as an alias of "in".
func (p *Parameter) UnmarshalJSON(data []byte) error {
	type plain Parameter
	aux := struct {
		*plain
		Location Location `json:"location,omitempty"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.In == "" && aux.Location != "" {
		p.In = aux.Location
	}
	return nil
}

// RequestBody describes the optional request payload. Schema is passed
// through untouched into the tool's "body" property.
type RequestBody struct {
	ContentType string      `json:"content_type,omitempty"`
	Required    bool        `json:"required"`
	Description string      `json:"description,omitempty"`
	Schema      interface{} `json:"schema,omitempty"`
}

// Response documents an expected upstream response. It has no runtime effect.
type Response struct {
	StatusCode  int         `json:"status_code"`
	Description string      `json:"description,omitempty"`
	Schema      interface{} `json:"schema,omitempty"`
}

// Descriptor is one registered HTTP API exposed as a tool.
type Descriptor struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	BaseURL        string            `json:"base_url"`
	Path           string            `json:"path"`
	Method         Method            `json:"method"`
	Parameters     []Parameter       `json:"parameters"`
	RequestBody    *RequestBody      `json:"request_body,omitempty"`
	Responses      []Response        `json:"responses,omitempty"`
	Authentication Authentication    `json:"authentication"`
	Headers        map[string]string `json:"headers,omitempty"`
	Status         Status            `json:"status"`
	Tags           []string          `json:"tags"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Enabled reports whether the descriptor is part of the invocable tool set.
func (d *Descriptor) Enabled() bool {
	return d.Status == StatusEnabled
}

// HasTag reports whether the descriptor carries tag.
func (d *Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Parameter returns the named parameter, if declared.
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Normalize fills defaults and canonicalizes fields in place. It is
// idempotent and never fails; Validate reports what Normalize cannot fix.
func (d *Descriptor) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.BaseURL = strings.TrimSpace(d.BaseURL)
	d.Path = strings.TrimSpace(d.Path)
	if d.Method != "" {
		if m, err := ParseMethod(string(d.Method)); err == nil {
			d.Method = m
		}
	}
	if d.Status == "" {
		d.Status = StatusEnabled
	}
	if d.Parameters == nil {
		d.Parameters = []Parameter{}
	}
	for i := range d.Parameters {
		p := &d.Parameters[i]
		p.Name = strings.TrimSpace(p.Name)
		p.In = Location(strings.ToLower(string(p.In)))
		if p.In == "" {
			p.In = InQuery
		}
		if p.Type == "" {
			p.Type = "string"
		}
		// A path segment cannot be omitted, so path parameters are always required.
		if p.In == InPath {
			p.Required = true
		}
	}
	if d.RequestBody != nil && d.RequestBody.ContentType == "" {
		d.RequestBody.ContentType = DefaultContentType
	}
	d.Authentication.Normalize()
	d.Tags = normalizeTags(d.Tags)
}

// DefaultContentType is used for request bodies without an explicit type.
const DefaultContentType = "application/json"

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Clone returns a deep copy of d. Opaque schema values are shared since
// they are never mutated after decoding.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	if d.Parameters != nil {
		c.Parameters = make([]Parameter, len(d.Parameters))
		copy(c.Parameters, d.Parameters)
		for i := range c.Parameters {
			if d.Parameters[i].Enum != nil {
				c.Parameters[i].Enum = append([]interface{}(nil), d.Parameters[i].Enum...)
			}
		}
	}
	if d.RequestBody != nil {
		rb := *d.RequestBody
		c.RequestBody = &rb
	}
	if d.Responses != nil {
		c.Responses = append([]Response(nil), d.Responses...)
	}
	if d.Headers != nil {
		c.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			c.Headers[k] = v
		}
	}
	if d.Tags != nil {
		c.Tags = append([]string(nil), d.Tags...)
	}
	return &c
}

// Summary is the compact listing form used by list tools.
type Summary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Method      Method   `json:"method"`
	BaseURL     string   `json:"base_url"`
	Path        string   `json:"path"`
	Status      Status   `json:"status"`
	Tags        []string `json:"tags"`
}

// Summarize returns the listing form of d.
func (d *Descriptor) Summarize() Summary {
	return Summary{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Method:      d.Method,
		BaseURL:     d.BaseURL,
		Path:        d.Path,
		Status:      d.Status,
		Tags:        d.Tags,
	}
}
