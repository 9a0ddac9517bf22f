package descriptor

// schemaKeywords mark a map as a schema rather than a bare properties map.
var schemaKeywords = []string{"type", "properties", "items", "oneOf", "anyOf", "allOf", "$ref", "enum", "const", "not"}

// InputSchema derives the tool input schema: one property per parameter,
// a required list, and a "body" property when a request body is declared.
func (d *Descriptor) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Parameters)+1)
	required := []string{}

	for _, p := range d.Parameters {
		prop := map[string]interface{}{
			"type": p.Type,
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	if d.RequestBody != nil {
		properties[BodyArgument] = bodyProperty(d.RequestBody)
		if d.RequestBody.Required {
			required = append(required, BodyArgument)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// bodyProperty builds the "body" property from the declared request body.
// A schema map with no schema keywords is read as a bare properties map.
func bodyProperty(rb *RequestBody) map[string]interface{} {
	obj, ok := rb.Schema.(map[string]interface{})
	if !ok || len(obj) == 0 {
		prop := map[string]interface{}{"type": "object"}
		if rb.Description != "" {
			prop["description"] = rb.Description
		}
		return prop
	}

	if isSchema(obj) {
		prop := make(map[string]interface{}, len(obj)+1)
		for k, v := range obj {
			prop[k] = v
		}
		if _, has := prop["description"]; !has && rb.Description != "" {
			prop["description"] = rb.Description
		}
		return prop
	}

	prop := map[string]interface{}{
		"type":       "object",
		"properties": obj,
	}
	if rb.Description != "" {
		prop["description"] = rb.Description
	}
	return prop
}

func isSchema(obj map[string]interface{}) bool {
	for _, kw := range schemaKeywords {
		if _, ok := obj[kw]; ok {
			return true
		}
	}
	for _, v := range obj {
		if _, isMap := v.(map[string]interface{}); !isMap {
			return true
		}
	}
	return false
}
