// Package route loads the pilgrimage-route geometry source.
//
// Features are read once from a GeoJSON FeatureCollection and converted to
// typed [Feature] values. Attributes are defaulted at load time so nothing
// downstream has to query raw property maps.
package route

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON property keys used by the source file.
const (
	PropName    = "nombre"
	PropGroup   = "agrupacion"
	PropLength  = "longitud"
	PropCountry = "pais"
	PropInfoURL = "url_info"
)

// Feature is a named route segment with its display attributes.
// Values are immutable once loaded.
type Feature struct {
	ID       string       `json:"id" doc:"Route identifier" example:"camino_frances"`
	Name     string       `json:"name" doc:"Route name" example:"Camino Francés"`
	Group    string       `json:"group" doc:"Route group used for styling" example:"Camino Francés"`
	LengthKm float64      `json:"lengthKm" doc:"Length in kilometres" example:"764"`
	Country  string       `json:"country" doc:"Country" example:"España"`
	InfoURL  string       `json:"infoUrl" doc:"More information" example:"https://example.org/cf"`
	Geometry orb.Geometry `json:"-"`
}

// Bound returns the geometry bound, or an empty bound for features
// without geometry.
func (f Feature) Bound() orb.Bound {
	if f.Geometry == nil {
		return orb.Bound{}
	}
	return f.Geometry.Bound()
}

// Collection is the loaded geometry source.
type Collection struct {
	Features []Feature
	byID     map[string]int
}

// Load reads and parses a GeoJSON file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading route source: %w", err)
	}
	return Parse(data)
}

// Parse converts a GeoJSON FeatureCollection into a Collection.
func Parse(data []byte) (*Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing route source: %w", err)
	}
	return FromFeatureCollection(fc), nil
}

// FromFeatureCollection converts already decoded GeoJSON features.
func FromFeatureCollection(fc *geojson.FeatureCollection) *Collection {
	c := &Collection{byID: make(map[string]int, len(fc.Features))}
	for i, gf := range fc.Features {
		f := Feature{
			Name:     stringProp(gf.Properties, PropName),
			Group:    rawProp(gf.Properties, PropGroup),
			LengthKm: numberProp(gf.Properties, PropLength),
			Country:  stringProp(gf.Properties, PropCountry),
			InfoURL:  stringProp(gf.Properties, PropInfoURL),
			Geometry: gf.Geometry,
		}
		c.add(f, featureKey(gf, f, i))
	}
	return c
}

// Empty returns a collection with no features.
func Empty() *Collection {
	return &Collection{byID: map[string]int{}}
}

// Len returns the number of features.
func (c *Collection) Len() int {
	return len(c.Features)
}

// Get returns a feature by ID.
func (c *Collection) Get(id string) (Feature, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Feature{}, false
	}
	return c.Features[i], true
}

// Bound returns the union of all feature bounds.
func (c *Collection) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			b = f.Bound()
			first = false
			continue
		}
		b = b.Union(f.Bound())
	}
	return b
}

// FeatureCollection converts the collection back to GeoJSON. decorate, when
// non-nil, may add extra properties per feature.
func (c *Collection) FeatureCollection(decorate func(Feature, geojson.Properties)) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		gf.Properties[PropName] = f.Name
		gf.Properties[PropGroup] = f.Group
		gf.Properties[PropLength] = f.LengthKm
		gf.Properties[PropCountry] = f.Country
		gf.Properties[PropInfoURL] = f.InfoURL
		if decorate != nil {
			decorate(f, gf.Properties)
		}
		fc.Append(gf)
	}
	return fc
}

func (c *Collection) add(f Feature, key string) {
	id := key
	for n := 1; ; n++ {
		if _, exists := c.byID[id]; !exists {
			break
		}
		id = fmt.Sprintf("%s_%d", key, n)
	}
	f.ID = id
	c.byID[id] = len(c.Features)
	c.Features = append(c.Features, f)
}

func featureKey(gf *geojson.Feature, f Feature, index int) string {
	if gf.ID != nil {
		if id := generateID(fmt.Sprint(gf.ID)); id != "" {
			return id
		}
	}
	if id := generateID(f.Name); id != "" {
		return id
	}
	return "route_" + strconv.Itoa(index)
}

func stringProp(p geojson.Properties, key string) string {
	return strings.TrimSpace(rawProp(p, key))
}

// rawProp keeps a string property as given. Group values are matched
// exactly by the style resolver.
func rawProp(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// numberProp accepts numbers and numeric strings ("764", "764,5").
func numberProp(p geojson.Properties, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return 0
}

// generateID creates a URL-safe ID from a name. Accented letters are folded
// to ASCII so "Camino Francés" becomes "camino_frances".
func generateID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if f, ok := asciiFold[r]; ok {
			r = f
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var asciiFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c',
}
