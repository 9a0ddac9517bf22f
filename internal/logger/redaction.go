package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor scrubs credentials from log lines. Keys and header names survive
// so the line stays readable; only the secret value is replaced.
type Redactor struct {
	rules []rule
}

// NewRedactor creates a redactor covering upstream credentials and the
// inbound bearer token.
func NewRedactor() *Redactor {
	keep := "${1}" + redacted + "${2}"
	return &Redactor{
		rules: []rule{
			// Authorization schemes
			{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+()`), keep},
			{regexp.MustCompile(`(?i)(basic\s+)[A-Za-z0-9+/=]+()`), keep},

			// JSON fields, plain and string-escaped
			{regexp.MustCompile(`(?i)("(?:api_key|apikey|password|token|inbound_token|secret|x-api-key)"\s*:\s*")(?:[^"\\]|\\.)*(")`), keep},
			{regexp.MustCompile(`(?i)(\\"(?:api_key|apikey|password|token|inbound_token|secret|x-api-key)\\"\s*:\s*\\")[^"\\]*(\\")`), keep},

			// query strings and key=value pairs
			{regexp.MustCompile(`(?i)((?:api_key|apikey|password|token|secret)=)[^\s&"]+()`), keep},

			// common provider key shapes
			{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), redacted},
			{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), redacted},
		},
	}
}

// AddPattern adds a pattern whose whole match is redacted.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re, repl: redacted})
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rl := range r.rules {
		result = rl.re.ReplaceAllString(result, rl.repl)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so zerolog does not treat a shortened
// line as a short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
