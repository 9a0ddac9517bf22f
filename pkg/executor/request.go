package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/harun/apibridge/pkg/registry"
	"golang.org/x/net/http/httpguts"
)

var variablePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}\}`)

// ExpandVariables replaces {{name}} with vars[name]. Unknown names are left
// as written.
func ExpandVariables(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return variablePattern.ReplaceAllStringFunc(s, func(m string) string {
		name := variablePattern.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// stringify renders an argument for a path segment, query value or header.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Build assembles the outbound request for d from args. Headers are applied
// in order: body content type, descriptor defaults, header parameters, then
// authentication, so credentials always win.
func (e *Executor) Build(ctx context.Context, d *descriptor.Descriptor, args map[string]interface{}) (*http.Request, error) {
	vars := e.variables()
	expand := func(s string) string { return ExpandVariables(s, vars) }

	path := d.Path
	for _, p := range d.Parameters {
		if p.In != descriptor.InPath {
			continue
		}
		v, ok := args[p.Name]
		if !ok || v == nil {
			return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("missing path parameter %q", p.Name), p.Name)
		}
		value := stringify(v)
		if value == "" {
			return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("path parameter %q is empty", p.Name), p.Name)
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(value))
	}

	base := strings.TrimRight(expand(d.BaseURL), "/")
	u, err := url.Parse(base + path)
	if err != nil {
		return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("invalid request URL: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
	}

	query := u.Query()
	for _, p := range d.Parameters {
		if p.In != descriptor.InQuery {
			continue
		}
		v, ok := args[p.Name]
		if !ok || v == nil {
			continue
		}
		if items, isArray := v.([]interface{}); isArray {
			for _, item := range items {
				query.Add(p.Name, stringify(item))
			}
			continue
		}
		query.Set(p.Name, stringify(v))
	}
	u.RawQuery = query.Encode()

	body, contentType, err := encodeBody(d, args)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, string(d.Method), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range d.Headers {
		value := expand(v)
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("header %q has an invalid value", k), "headers")
		}
		req.Header.Set(k, value)
	}
	for _, p := range d.Parameters {
		if p.In != descriptor.InHeader {
			continue
		}
		v, ok := args[p.Name]
		if !ok || v == nil {
			continue
		}
		value := stringify(v)
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("header parameter %q contains control characters", p.Name), p.Name)
		}
		req.Header.Set(p.Name, value)
	}

	auth := make(http.Header)
	d.Authentication.Expand(expand).Apply(auth)
	for k, values := range auth {
		for _, value := range values {
			if !httpguts.ValidHeaderFieldValue(value) {
				return nil, registry.InvalidArgs(d.Name, fmt.Sprintf("credential for header %q has an invalid value", k), "authentication")
			}
		}
		req.Header[k] = values
	}

	if req.Header.Get("User-Agent") == "" && e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	return req, nil
}

// encodeBody serializes the "body" argument according to the declared
// content type. No request body is sent when none is declared or supplied.
func encodeBody(d *descriptor.Descriptor, args map[string]interface{}) (io.Reader, string, error) {
	if d.RequestBody == nil {
		return nil, "", nil
	}
	v, ok := args[descriptor.BodyArgument]
	if !ok || v == nil {
		return nil, "", nil
	}

	contentType := d.RequestBody.ContentType
	if contentType == "" {
		contentType = descriptor.DefaultContentType
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		obj, isObj := v.(map[string]interface{})
		if !isObj {
			return nil, "", registry.InvalidArgs(d.Name, "form body must be an object", descriptor.BodyArgument)
		}
		form := url.Values{}
		for k, fv := range obj {
			if items, isArray := fv.([]interface{}); isArray {
				for _, item := range items {
					form.Add(k, stringify(item))
				}
				continue
			}
			form.Set(k, stringify(fv))
		}
		return strings.NewReader(form.Encode()), contentType, nil

	case strings.HasPrefix(mediaType, "text/"), mediaType == "application/xml", mediaType == "application/octet-stream":
		if s, isString := v.(string); isString {
			return strings.NewReader(s), contentType, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", registry.InvalidArgs(d.Name, fmt.Sprintf("body is not serializable: %v", err), descriptor.BodyArgument)
	}
	return bytes.NewReader(data), contentType, nil
}
