// Package web embeds the viewer page, its static assets and the HTML
// fragments patched in over SSE.
package web

import "embed"

// FS holds templates/ and static/.
//
//go:embed templates static
var FS embed.FS
