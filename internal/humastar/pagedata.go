// pagedata.go: OpenAPI document to page template data.
//
// BuildPageData gives a page everything it needs from the OpenAPI document:
//   - Signals JSON for data-signals, from a signals struct's schema defaults
//   - Routes for every operation carrying a tag, keyed by operation ID
//
// Pages therefore never hardcode endpoint URLs or signal names.
package humastar

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// PageData is the template data of a Datastar page.
type PageData struct {
	// Signals is the JSON for data-signals initialization.
	Signals string

	// Routes maps operation IDs to their paths, e.g.
	// Routes["ui-click"] = "/api/v1/ui/click".
	Routes map[string]string
}

// Route returns the path for an operation ID.
func (pd PageData) Route(operationID string) string {
	return pd.Routes[operationID]
}

// BuildPageData builds template data from the operations tagged with tag
// and the schema of signals, a struct whose fields carry json and default
// tags.
func BuildPageData(api huma.API, tag string, signals any) PageData {
	initial := buildInitialSignals(api, reflect.TypeOf(signals))
	signalsJSON, _ := json.Marshal(initial)

	return PageData{
		Signals: string(signalsJSON),
		Routes:  discoverRoutes(api, tag),
	}
}

// buildInitialSignals registers t in the schema registry and reads each
// primitive property's default, falling back to the type's zero value.
func buildInitialSignals(api huma.API, t reflect.Type) map[string]any {
	signals := map[string]any{}
	if t == nil {
		return signals
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	registry := api.OpenAPI().Components.Schemas
	schema := registry.Schema(t, true, t.Name())
	if schema != nil && schema.Ref != "" {
		schema = registry.SchemaFromRef(schema.Ref)
	}
	if schema == nil {
		return signals
	}

	for i := range t.NumField() {
		sf := t.Field(i)

		name := sf.Tag.Get("json")
		if idx := strings.IndexByte(name, ','); idx >= 0 {
			name = name[:idx]
		}
		if name == "" || name == "-" {
			continue
		}

		prop, ok := schema.Properties[name]
		if !ok || prop.Type == "array" || prop.Type == "object" {
			continue
		}

		if prop.Default != nil {
			signals[name] = prop.Default
			continue
		}
		switch prop.Type {
		case "boolean":
			signals[name] = false
		case "number", "integer":
			signals[name] = 0
		default:
			signals[name] = ""
		}
	}
	return signals
}

// discoverRoutes maps the operation IDs tagged with tag to their paths.
func discoverRoutes(api huma.API, tag string) map[string]string {
	routes := map[string]string{}
	for path, item := range api.OpenAPI().Paths {
		for _, op := range operationsOf(item) {
			if op != nil && op.OperationID != "" && hasTag(op.Tags, tag) {
				routes[op.OperationID] = path
			}
		}
	}
	return routes
}
