package humastar

import (
	"bytes"

	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/templates"
)

// SelectOptionData is one option of a select element.
type SelectOptionData struct {
	Value    string
	Label    string
	Selected bool
}

// RenderList renders items with a named template, or an empty state if none.
func RenderList(r *templates.Renderer, tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		render(r, &buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		render(r, &buf, tmpl, item)
	}
	return buf.String()
}

// RenderSelect renders option elements.
func RenderSelect(r *templates.Renderer, options []SelectOptionData) string {
	var buf bytes.Buffer
	for _, opt := range options {
		render(r, &buf, "select-option", opt)
	}
	return buf.String()
}

func render(r *templates.Renderer, buf *bytes.Buffer, name string, data any) {
	if err := r.RenderToBuffer(buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Fragment render failed")
	}
}
