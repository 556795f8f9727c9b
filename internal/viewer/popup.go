package viewer

import (
	"html/template"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// AutoPanDuration is how long the overlay animates when the map pans to
// keep an anchored popup in view.
const AutoPanDuration = 250 * time.Millisecond

// TODO: confirm with the data owners whether the "Dificultad" row should
// show the country; the label is kept as published until then.
var popupTemplate = template.Must(template.New("popup").Parse(
	`<h3>{{.Group}}</h3>
<p><strong>Descripción:</strong> {{.Group}}</p>
<p><strong>Distancia:</strong> {{.LengthKm}} km</p>
<p><strong>Dificultad:</strong> {{.Country}}</p>
<p><strong>URL:</strong> <a href="{{.InfoURL}}" target="_blank">{{.InfoURL}}</a></p>`))

// PopupState is the current popup: whether it shows, where it is anchored
// and its markup.
type PopupState struct {
	Visible bool       `json:"visible"`
	Anchor  *orb.Point `json:"anchor,omitempty"`
	HTML    string     `json:"html"`
}

// Presenter owns the popup state and drives the overlay and surface.
type Presenter struct {
	overlay Overlay
	surface Surface
	state   PopupState
}

// NewPresenter creates a presenter in the hidden state. Either
// collaborator may be nil.
func NewPresenter(overlay Overlay, surface Surface) *Presenter {
	return &Presenter{overlay: overlay, surface: surface}
}

// State returns a copy of the popup state.
func (p *Presenter) State() PopupState {
	s := p.state
	if s.Anchor != nil {
		a := *s.Anchor
		s.Anchor = &a
	}
	return s
}

// Present shows pick anchored at anchor, or hides the popup when pick is
// nil. The previous content is always replaced.
func (p *Presenter) Present(pick *Attributes, anchor orb.Point) {
	if pick == nil {
		p.hide()
		return
	}

	html := RenderPopup(*pick)
	a := anchor
	p.state = PopupState{Visible: true, Anchor: &a, HTML: html}
	if p.surface != nil {
		p.surface.SetContent(html)
	}
	if p.overlay != nil {
		pos := a
		p.overlay.SetPosition(&pos)
	}
}

// Dismiss hides the popup on the user's request and blurs the close
// affordance. It returns true: the triggering event's default action is
// to be suppressed.
func (p *Presenter) Dismiss() bool {
	p.hide()
	if p.surface != nil {
		p.surface.BlurCloser()
	}
	return true
}

func (p *Presenter) hide() {
	p.state = PopupState{}
	if p.overlay != nil {
		p.overlay.SetPosition(nil)
	}
}

// RenderPopup formats popup markup for a picked route.
func RenderPopup(a Attributes) string {
	var b strings.Builder
	if err := popupTemplate.Execute(&b, a); err != nil {
		return "<h3>" + template.HTMLEscapeString(a.Group) + "</h3>"
	}
	return b.String()
}
