// Package descriptor defines the persisted shape of a registered HTTP API
// and the rules that keep it invocable as a tool.
//
// Invariants:
// - Name is a valid tool identifier.
// - Every {param} in Path has exactly one path-located parameter and vice versa.
// - Parameter names are unique and never collide with the reserved "body" argument.
//
// Usage:
//
//	d := descriptor.Descriptor{
//		Name:        "get_weather",
//		Description: "Current weather for a city",
//		BaseURL:     "https://api.weather.com",
//		Path:        "/v1/weather",
//		Method:      descriptor.MethodGet,
//		Parameters: []descriptor.Parameter{
//			{Name: "city", In: descriptor.InQuery, Required: true, Type: "string"},
//		},
//	}
//	d.Normalize()
//	if err := d.Validate(); err != nil {
//		return err
//	}
//	schema := d.InputSchema()
package descriptor
