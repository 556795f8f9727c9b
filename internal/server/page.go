package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/joeblew999/plat-camino/internal/api"
	"github.com/joeblew999/plat-camino/internal/humastar"
)

const (
	viewerTemplate = "templates/viewer.html"
	viewerCSS      = "static/viewer.css"
	viewerJS       = "static/viewer.js"
	faviconSVG     = "static/favicon.svg"
)

// viewerData is the data of templates/viewer.html.
type viewerData struct {
	Title string
	CSS   template.CSS
	JS    template.JS
	Page  humastar.PageData
	Map   api.MapInfo
}

type pageAssets struct {
	tmpl    *template.Template
	css     template.CSS
	js      template.JS
	favicon []byte
}

// pageBuilder renders the single-file viewer page with minified CSS and JS
// inlined. Assets are read once unless reload is set.
type pageBuilder struct {
	fsys   fs.FS
	reload bool
	data   humastar.PageData
	m      *minify.M

	once   sync.Once
	assets pageAssets
	err    error
}

func newPageBuilder(fsys fs.FS, reload bool, data humastar.PageData) *pageBuilder {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &pageBuilder{fsys: fsys, reload: reload, data: data, m: m}
}

// Build renders the viewer page for the current map state.
func (p *pageBuilder) Build(info api.MapInfo) ([]byte, error) {
	a, err := p.load()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, viewerData{
		Title: info.Title,
		CSS:   a.css,
		JS:    a.js,
		Page:  p.data,
		Map:   info,
	}); err != nil {
		return nil, fmt.Errorf("rendering viewer: %w", err)
	}

	out, err := p.m.Bytes("text/html", buf.Bytes())
	if err != nil {
		log.Warn().Err(err).Msg("Minifying viewer HTML failed, serving it as is")
		return buf.Bytes(), nil
	}
	return out, nil
}

// Favicon returns the minified page icon.
func (p *pageBuilder) Favicon() ([]byte, error) {
	a, err := p.load()
	if err != nil {
		return nil, err
	}
	return a.favicon, nil
}

func (p *pageBuilder) load() (pageAssets, error) {
	if p.reload {
		return p.read()
	}
	p.once.Do(func() {
		p.assets, p.err = p.read()
	})
	return p.assets, p.err
}

func (p *pageBuilder) read() (pageAssets, error) {
	var a pageAssets

	raw, err := fs.ReadFile(p.fsys, viewerTemplate)
	if err != nil {
		return a, fmt.Errorf("reading viewer template: %w", err)
	}
	if a.tmpl, err = template.New("viewer").Parse(string(raw)); err != nil {
		return a, fmt.Errorf("parsing viewer template: %w", err)
	}

	cssMin, err := p.minifyFile("text/css", viewerCSS)
	if err != nil {
		return a, err
	}
	jsMin, err := p.minifyFile("text/javascript", viewerJS)
	if err != nil {
		return a, err
	}
	svgMin, err := p.minifyFile("image/svg+xml", faviconSVG)
	if err != nil {
		return a, err
	}

	a.css = template.CSS(cssMin)
	a.js = template.JS(jsMin)
	a.favicon = []byte(svgMin)
	return a, nil
}

func (p *pageBuilder) minifyFile(mediatype, name string) (string, error) {
	raw, err := fs.ReadFile(p.fsys, name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	out, err := p.m.String(mediatype, string(raw))
	if err != nil {
		return "", fmt.Errorf("minifying %s: %w", name, err)
	}
	return out, nil
}
