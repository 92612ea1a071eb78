package geom

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"tilexport/internal/crs"
)

// loadGeoJSON reads a FeatureCollection, a single Feature or a bare
// geometry. RFC 7946 data is WGS 84; a legacy "crs" member may name another
// EPSG code.
func loadGeoJSON(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var (
		features []*geojson.Feature
		members  geojson.Properties
	)
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		features, members = fc.Features, fc.ExtraMembers
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		features = []*geojson.Feature{f}
	case "":
		return nil, errors.New("invalid geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		features = []*geojson.Feature{geojson.NewFeature(g.Geometry())}
	}

	l := &Layer{CRS: crs.FromEPSG(4326)}
	if code := legacyCRSCode(members); code > 0 {
		l.CRS = crs.FromEPSG(code)
	}
	seen := map[string]bool{}
	for _, f := range features {
		attrs := make(map[string]string, len(f.Properties)+1)
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs[k] = propString(f.Properties[k])
			if !seen[k] {
				seen[k] = true
				l.Fields = append(l.Fields, k)
			}
		}
		if _, ok := attrs["id"]; !ok && f.ID != nil {
			attrs["id"] = propString(f.ID)
		}
		l.Features = append(l.Features, Feature{Attrs: attrs, Geometry: f.Geometry})
	}
	return l, nil
}

// propString flattens a property value the way it would print in an
// attribute table.
func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		bs, _ := json.Marshal(t)
		return string(bs)
	}
}

// legacyCRSCode reads {"crs":{"type":"name","properties":{"name":...}}}.
func legacyCRSCode(members geojson.Properties) int {
	raw, ok := members["crs"].(map[string]any)
	if !ok {
		return 0
	}
	props, _ := raw["properties"].(map[string]any)
	name, _ := props["name"].(string)
	if name == "" {
		return 0
	}
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return 4326
	}
	i := strings.LastIndex(name, ":")
	code, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0
	}
	return code
}
