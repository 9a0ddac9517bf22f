package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/harun/apibridge/pkg/registry"
	"github.com/harun/apibridge/pkg/store"
)

// builtinHandler serves one built-in tool. Arguments are already validated
// against the tool's input schema.
type builtinHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

const secretMask = "********"

func (d *Dispatcher) builtinHandlers() map[string]builtinHandler {
	return map[string]builtinHandler{
		registry.ListAPIs:       d.listAPIs,
		registry.GetAPI:         d.getAPI,
		registry.ListAPIsByTag:  d.listAPIsByTag,
		registry.AddAPI:         d.addAPI,
		registry.UpdateAPI:      d.updateAPI,
		registry.DeleteAPI:      d.deleteAPI,
		registry.EnableAPI:      d.setStatus(registry.EnableAPI, descriptor.StatusEnabled),
		registry.DisableAPI:     d.setStatus(registry.DisableAPI, descriptor.StatusDisabled),
		registry.ListVariables:  d.listVariables,
		registry.SetVariable:    d.setVariable,
		registry.DeleteVariable: d.deleteVariable,
	}
}

// decodeArgs re-encodes args into v so the descriptor JSON rules (aliases,
// auth discriminator, explicit nulls) apply to tool arguments too.
func decodeArgs(tool string, args map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return registry.InvalidArgs(tool, err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return registry.InvalidArgs(tool, err.Error())
	}
	return nil
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// selectAPI returns the id argument, or the name argument when id is absent.
func selectAPI(tool string, args map[string]interface{}) (string, error) {
	if id := stringArg(args, "id"); id != "" {
		return id, nil
	}
	if name := stringArg(args, "name"); name != "" {
		return name, nil
	}
	return "", registry.InvalidArgs(tool, "id or name is required", "id", "name")
}

// redact hides credentials before a descriptor leaves the process.
func redact(api *descriptor.Descriptor) *descriptor.Descriptor {
	api.Authentication = api.Authentication.Redacted()
	return api
}

func summaries(apis []*descriptor.Descriptor) []descriptor.Summary {
	out := make([]descriptor.Summary, len(apis))
	for i, api := range apis {
		out[i] = api.Summarize()
	}
	return out
}

func (d *Dispatcher) listAPIs(_ context.Context, args map[string]interface{}) (interface{}, error) {
	filter := store.Filter{Tag: stringArg(args, "tag")}
	switch status := stringArg(args, "status"); status {
	case "", "all":
	default:
		filter.Status = descriptor.Status(status)
	}

	apis := d.store.List(filter)
	return map[string]interface{}{
		"apis":  summaries(apis),
		"count": len(apis),
	}, nil
}

func (d *Dispatcher) getAPI(_ context.Context, args map[string]interface{}) (interface{}, error) {
	key, err := selectAPI(registry.GetAPI, args)
	if err != nil {
		return nil, err
	}
	api, err := d.store.Find(key)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"api": redact(api)}, nil
}

func (d *Dispatcher) listAPIsByTag(_ context.Context, args map[string]interface{}) (interface{}, error) {
	tag := stringArg(args, "tag")
	if tag == "" {
		return nil, registry.InvalidArgs(registry.ListAPIsByTag, "tag must not be empty", "tag")
	}

	apis := d.store.List(store.Filter{Tag: tag})
	return map[string]interface{}{
		"tag":   tag,
		"apis":  summaries(apis),
		"count": len(apis),
	}, nil
}

func (d *Dispatcher) addAPI(_ context.Context, args map[string]interface{}) (interface{}, error) {
	var api descriptor.Descriptor
	if err := decodeArgs(registry.AddAPI, args, &api); err != nil {
		return nil, err
	}

	added, err := d.store.Add(api)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("API '%s' added with id %s", added.Name, added.ID),
		"api":     redact(added),
	}, nil
}

func (d *Dispatcher) updateAPI(_ context.Context, args map[string]interface{}) (interface{}, error) {
	key, err := selectAPI(registry.UpdateAPI, args)
	if err != nil {
		return nil, err
	}

	var patch descriptor.Patch
	if err := decodeArgs(registry.UpdateAPI, args, &patch); err != nil {
		return nil, err
	}
	// With an id selecting the API, name is the new name.
	if name := stringArg(args, "name"); name != "" && name != key {
		switch {
		case patch.Name == nil:
			patch.Name = &name
		case *patch.Name != name:
			return nil, registry.InvalidArgs(registry.UpdateAPI, "name and new_name disagree", "name", "new_name")
		}
	}
	if patch.Empty() {
		return nil, registry.InvalidArgs(registry.UpdateAPI, "no fields to update")
	}

	updated, err := d.store.Update(key, patch)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("API '%s' updated", updated.Name),
		"api":     redact(updated),
	}, nil
}

func (d *Dispatcher) deleteAPI(_ context.Context, args map[string]interface{}) (interface{}, error) {
	key, err := selectAPI(registry.DeleteAPI, args)
	if err != nil {
		return nil, err
	}

	removed, err := d.store.Delete(key)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("API '%s' deleted", removed.Name),
		"id":      removed.ID,
	}, nil
}

func (d *Dispatcher) setStatus(tool string, status descriptor.Status) builtinHandler {
	return func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		key, err := selectAPI(tool, args)
		if err != nil {
			return nil, err
		}

		api, err := d.store.SetStatus(key, status)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"message": fmt.Sprintf("API '%s' %s", api.Name, status),
			"api":     api.Summarize(),
		}, nil
	}
}

func (d *Dispatcher) listVariables(_ context.Context, args map[string]interface{}) (interface{}, error) {
	reveal, _ := args["reveal"].(bool)

	vars := d.store.Variables()
	if !reveal {
		for k := range vars {
			vars[k] = secretMask
		}
	}
	return map[string]interface{}{
		"variables": vars,
		"count":     len(vars),
	}, nil
}

func (d *Dispatcher) setVariable(_ context.Context, args map[string]interface{}) (interface{}, error) {
	key := stringArg(args, "key")
	value, _ := args["value"].(string)

	if err := d.store.SetVariable(key, value); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("Variable '%s' set", key),
	}, nil
}

func (d *Dispatcher) deleteVariable(_ context.Context, args map[string]interface{}) (interface{}, error) {
	key := stringArg(args, "key")

	deleted, err := d.store.DeleteVariable(key)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, &store.Error{Kind: store.KindNotFound, Key: key, Msg: fmt.Sprintf("variable '%s' not found", key)}
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("Variable '%s' deleted", key),
	}, nil
}
