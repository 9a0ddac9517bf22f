package registry

// Built-in tool names.
const (
	ListAPIs       = "list_apis"
	GetAPI         = "get_api"
	ListAPIsByTag  = "list_apis_by_tag"
	AddAPI         = "add_api"
	UpdateAPI      = "update_api"
	DeleteAPI      = "delete_api"
	EnableAPI      = "enable_api"
	DisableAPI     = "disable_api"
	ListVariables  = "list_variables"
	SetVariable    = "set_variable"
	DeleteVariable = "delete_variable"
)

// Builtin is a tool served by the process itself rather than an upstream API.
type Builtin struct {
	Name        string
	Description string
	Mutating    bool
	InputSchema map[string]interface{}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func selector() map[string]interface{} {
	return map[string]interface{}{
		"id":   str("API id"),
		"name": str("API name; used when id is absent"),
	}
}

func descriptorFields() map[string]interface{} {
	return map[string]interface{}{
		"description": str("Human description, becomes the tool description"),
		"base_url":    str("Upstream base URL, e.g. https://api.example.com"),
		"path":        str("Path template with {param} placeholders"),
		"method": map[string]interface{}{
			"type":        "string",
			"description": "HTTP method",
			"enum":        []interface{}{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "get", "post", "put", "delete", "patch", "head", "options"},
		},
		"parameters": map[string]interface{}{
			"type":        "array",
			"description": "Arguments bound into the request",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"name"},
				"properties": map[string]interface{}{
					"name":        map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
					"in":          map[string]interface{}{"type": "string", "enum": []interface{}{"path", "query", "header"}},
					"location":    map[string]interface{}{"type": "string", "enum": []interface{}{"path", "query", "header"}},
					"required":    map[string]interface{}{"type": "boolean"},
					"type":        map[string]interface{}{"type": "string"},
					"default":     map[string]interface{}{},
					"enum":        map[string]interface{}{"type": "array"},
				},
			},
		},
		"request_body": map[string]interface{}{
			"type":        []interface{}{"object", "null"},
			"description": "Optional request body: content_type, required, description, schema",
		},
		"responses": map[string]interface{}{
			"type":        "array",
			"description": "Documented responses",
			"items":       map[string]interface{}{"type": "object"},
		},
		"authentication": map[string]interface{}{
			"type":        "object",
			"description": "Upstream credentials keyed by type: none, api_key, bearer or basic",
			"properties": map[string]interface{}{
				"type": map[string]interface{}{"type": "string", "enum": []interface{}{"none", "api_key", "bearer", "basic"}},
			},
		},
		"headers": map[string]interface{}{
			"type":                 "object",
			"description":          "Default request headers",
			"additionalProperties": map[string]interface{}{"type": "string"},
		},
		"tags": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	}
}

func addAPISchema() map[string]interface{} {
	props := descriptorFields()
	props["id"] = str("Optional id; assigned when absent")
	props["name"] = str("Unique tool name")
	props["status"] = map[string]interface{}{"type": "string", "enum": []interface{}{"enabled", "disabled"}}
	return object([]string{"name", "description", "base_url", "path", "method"}, props)
}

func updateAPISchema() map[string]interface{} {
	props := descriptorFields()
	for k, v := range selector() {
		props[k] = v
	}
	props["name"] = str("API name; used when id is absent, otherwise the new name")
	props["new_name"] = str("Rename the API")
	return object(nil, props)
}

// Builtins returns the built-in tool definitions in listing order.
func Builtins() []Builtin {
	return []Builtin{
		{
			Name:        ListAPIs,
			Description: "List registered APIs, optionally filtered by status and tag",
			InputSchema: object(nil, map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Filter by status",
					"enum":        []interface{}{"all", "enabled", "disabled"},
					"default":     "all",
				},
				"tag": str("Only APIs carrying this tag"),
			}),
		},
		{
			Name:        GetAPI,
			Description: "Get the full definition of one API by id or name",
			InputSchema: object(nil, selector()),
		},
		{
			Name:        ListAPIsByTag,
			Description: "List APIs carrying a tag",
			InputSchema: object([]string{"tag"}, map[string]interface{}{"tag": str("Tag to match")}),
		},
		{
			Name:        AddAPI,
			Description: "Register an HTTP API as a new tool",
			Mutating:    true,
			InputSchema: addAPISchema(),
		},
		{
			Name:        UpdateAPI,
			Description: "Update fields of a registered API; omitted fields are kept",
			Mutating:    true,
			InputSchema: updateAPISchema(),
		},
		{
			Name:        DeleteAPI,
			Description: "Delete a registered API",
			Mutating:    true,
			InputSchema: object(nil, selector()),
		},
		{
			Name:        EnableAPI,
			Description: "Enable an API so it is exposed as a tool",
			Mutating:    true,
			InputSchema: object(nil, selector()),
		},
		{
			Name:        DisableAPI,
			Description: "Disable an API; it stays stored but is no longer a tool",
			Mutating:    true,
			InputSchema: object(nil, selector()),
		},
		{
			Name:        ListVariables,
			Description: "List template variables usable as {{name}} in base URLs, headers and credentials",
			InputSchema: object(nil, map[string]interface{}{
				"reveal": map[string]interface{}{"type": "boolean", "description": "Show values instead of masking them", "default": false},
			}),
		},
		{
			Name:        SetVariable,
			Description: "Create or replace a template variable",
			Mutating:    true,
			InputSchema: object([]string{"key", "value"}, map[string]interface{}{
				"key":   str("Variable name"),
				"value": str("Variable value"),
			}),
		},
		{
			Name:        DeleteVariable,
			Description: "Delete a template variable",
			Mutating:    true,
			InputSchema: object([]string{"key"}, map[string]interface{}{"key": str("Variable name")}),
		},
	}
}

// BuiltinNames returns every built-in tool name, gated or not. Descriptors may
// never take one of these names.
func BuiltinNames() []string {
	builtins := Builtins()
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.Name
	}
	return names
}
