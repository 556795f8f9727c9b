package humastar

import "fmt"

// Action is a hypermedia action that depends on resource state, emitted
// as an RFC 8288 Link header with method and title parameters:
//
//	</api/v1/sessions/0f8c/layers/pnoa/visibility>; rel="show"; method="PUT"; title="Mostrar"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string // optional JSON Schema URL for the request body
}

// Actor is implemented by response bodies that offer actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	if a.Schema != "" {
		h += fmt.Sprintf(`; schema="%s"`, a.Schema)
	}
	return h
}

// ActionDef is an action template whose Pattern holds one %s per path
// parameter, outermost first.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
	Schema  string
}

// Action resolves the definition for the given path parameters.
func (d ActionDef) Action(ids ...string) Action {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return Action{
		Rel:    d.Rel,
		Href:   fmt.Sprintf(d.Pattern, args...),
		Method: d.Method,
		Title:  d.Title,
		Schema: d.Schema,
	}
}

// ActionsFor resolves several definitions for a resource ID.
func ActionsFor(id string, defs ...ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = d.Action(id)
	}
	return actions
}
