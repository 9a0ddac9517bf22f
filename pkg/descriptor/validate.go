package descriptor

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationKind classifies a descriptor validation failure.
type ValidationKind string

const (
	MissingField       ValidationKind = "missing_field"
	InvalidPathBinding ValidationKind = "invalid_path_binding"
	DuplicateName      ValidationKind = "duplicate_name"
	InvalidValue       ValidationKind = "invalid_value"
)

// ValidationError reports why a descriptor cannot be stored.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
}

// IsValidation reports whether err is a *ValidationError of the given kind.
// An empty kind matches any validation error.
func IsValidation(err error, kind ValidationKind) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return kind == "" || ve.Kind == kind
}

func missing(field string) error {
	return &ValidationError{Kind: MissingField, Field: field, Message: "is required"}
}

func invalid(field, msg string) error {
	return &ValidationError{Kind: InvalidValue, Field: field, Message: msg}
}

// BodyArgument is the reserved argument name carrying the request body.
const BodyArgument = "body"

var (
	toolNamePattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	placeholderPattern = regexp.MustCompile(`\{([^{}/]*)\}`)
)

// ValidToolName reports whether name can be used as a tool identifier.
func ValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

// PathPlaceholders returns the {param} names in path, in order of appearance.
func PathPlaceholders(path string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Validate checks the descriptor invariants. Call Normalize first.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return missing("name")
	}
	if !ValidToolName(d.Name) {
		return invalid("name", "must match ^[A-Za-z0-9_-]{1,64}$")
	}
	if strings.TrimSpace(d.Description) == "" {
		return missing("description")
	}
	if d.BaseURL == "" {
		return missing("base_url")
	}
	if err := validateBaseURL(d.BaseURL); err != nil {
		return err
	}
	if d.Path == "" {
		return missing("path")
	}
	if !strings.HasPrefix(d.Path, "/") {
		return invalid("path", "must start with /")
	}
	if d.Method == "" {
		return missing("method")
	}
	if !d.Method.Valid() {
		return invalid("method", fmt.Sprintf("unsupported method %q", d.Method))
	}
	if !d.Status.Valid() {
		return invalid("status", "must be enabled or disabled")
	}
	if err := d.validateParameters(); err != nil {
		return err
	}
	if err := d.validatePathBinding(); err != nil {
		return err
	}
	for name := range d.Headers {
		if strings.TrimSpace(name) == "" {
			return invalid("headers", "header name cannot be empty")
		}
	}
	if err := d.Authentication.validate(); err != nil {
		return err
	}
	if d.RequestBody != nil {
		if err := validateBodySchema(d.RequestBody); err != nil {
			return err
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	// Variables may supply the host, so only check once they are absent.
	if strings.Contains(raw, "{{") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return invalid("base_url", err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("base_url", "scheme must be http or https")
	}
	if u.Host == "" {
		return invalid("base_url", "host is required")
	}
	return nil
}

func (d *Descriptor) validateParameters() error {
	seen := make(map[string]bool, len(d.Parameters))
	for i, p := range d.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)
		if p.Name == "" {
			return missing(field + ".name")
		}
		if p.Name == BodyArgument && d.RequestBody != nil {
			return &ValidationError{Kind: DuplicateName, Field: field + ".name", Message: `"body" is reserved for the request body`}
		}
		if seen[p.Name] {
			return &ValidationError{Kind: DuplicateName, Field: field + ".name", Message: fmt.Sprintf("parameter %q declared twice", p.Name)}
		}
		seen[p.Name] = true
		if !p.In.Valid() {
			return invalid(field+".in", "must be one of path, query, header")
		}
		if !validParameterType(p.Type) {
			return invalid(field+".type", "must be one of "+strings.Join(ParameterTypes, ", "))
		}
		if p.In == InHeader && strings.ContainsAny(p.Name, " :\r\n") {
			return invalid(field+".name", "not a valid header name")
		}
	}
	return nil
}

func validParameterType(t string) bool {
	for _, known := range ParameterTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (d *Descriptor) validatePathBinding() error {
	placeholders := PathPlaceholders(d.Path)
	inPath := make(map[string]int, len(placeholders))
	for _, name := range placeholders {
		if name == "" {
			return &ValidationError{Kind: InvalidPathBinding, Field: "path", Message: "empty {} placeholder"}
		}
		inPath[name]++
		if inPath[name] > 1 {
			return &ValidationError{Kind: InvalidPathBinding, Field: "path", Message: fmt.Sprintf("placeholder {%s} appears more than once", name)}
		}
	}

	declared := make(map[string]bool)
	for _, p := range d.Parameters {
		if p.In != InPath {
			continue
		}
		declared[p.Name] = true
		if inPath[p.Name] == 0 {
			return &ValidationError{Kind: InvalidPathBinding, Field: "parameters", Message: fmt.Sprintf("path parameter %q does not appear in path", p.Name)}
		}
	}
	for _, name := range placeholders {
		if !declared[name] {
			return &ValidationError{Kind: InvalidPathBinding, Field: "path", Message: fmt.Sprintf("placeholder {%s} has no path parameter", name)}
		}
	}
	return nil
}

func validateBodySchema(rb *RequestBody) error {
	if rb.Schema == nil {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(bodyProperty(rb))); err != nil {
		return invalid("request_body.schema", err.Error())
	}
	return nil
}
