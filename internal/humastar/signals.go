package humastar

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// Signals holds the Datastar signals posted by the page. Names are
// lowercase because data-bind lowercases them.
type Signals map[string]any

// ParseSignals decodes a request body of signals.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a string signal, or "" if absent.
func (s Signals) String(key string) string {
	if str, ok := s[key].(string); ok {
		return str
	}
	return ""
}

// Float returns a numeric signal, or 0 if absent or not finite. Bound
// inputs post numbers as strings, so those are parsed too.
func (s Signals) Float(key string) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0
}

// Int returns a numeric signal truncated to an int.
func (s Signals) Int(key string) int {
	return int(s.Float(key))
}

// Bool returns a boolean signal, or false if absent.
func (s Signals) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// Has reports whether the signal was posted, even if zero-valued.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// SignalsInput captures the raw body so signals can be read before the
// response starts streaming.
type SignalsInput struct {
	RawBody []byte
}

// Parse parses the signals from the raw body.
func (i *SignalsInput) Parse() (Signals, error) {
	return ParseSignals(i.RawBody)
}

// MustParse parses signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}

// SignalsQuery captures the signals Datastar sends with a GET request,
// which travel JSON-encoded in the datastar query parameter.
type SignalsQuery struct {
	Datastar string `query:"datastar" doc:"Datastar signals as JSON"`
}

// MustParse parses the signals, treating a missing parameter as no signals,
// or returns a Huma 400 error.
func (q *SignalsQuery) MustParse() (Signals, error) {
	if q.Datastar == "" {
		return Signals{}, nil
	}
	signals, err := ParseSignals([]byte(q.Datastar))
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
