// Package crs reads coordinate reference system definitions from WKT
// (shapefile .prj sidecars, GeoJSON crs members, config overrides).
package crs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Geographic
	Projected
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "geographic"
	case Projected:
		return "projected"
	}
	return "unknown"
}

// CRS is the subset of a coordinate reference system needed to tag a
// GeoTIFF: a name, an EPSG code when one is known, and the linear unit.
type CRS struct {
	Name          string
	WKT           string
	EPSG          int
	Kind          Kind
	Units         string
	UnitsToMeters float64
}

// IsZero reports whether nothing is known about the CRS.
func (c CRS) IsZero() bool {
	return c.Name == "" && c.WKT == "" && c.EPSG == 0
}

// Metric reports whether the CRS is projected with metre units.
func (c CRS) Metric() bool {
	return c.Kind == Projected && c.UnitsToMeters == 1
}

func (c CRS) String() string {
	switch {
	case c.EPSG > 0 && c.Name != "":
		return fmt.Sprintf("%s (EPSG:%d)", c.Name, c.EPSG)
	case c.EPSG > 0:
		return fmt.Sprintf("EPSG:%d", c.EPSG)
	case c.Name != "":
		return c.Name
	}
	return "unknown"
}

var ErrEmptyWKT = errors.New("crs: empty wkt")

var (
	utmName = regexp.MustCompile(`(?i)^wgs[ _]?(?:19)?84[ _/]+utm[ _]zone[ _](\d{1,2})([ns])$`)

	projectedKeywords  = map[string]bool{"PROJCS": true, "PROJCRS": true, "PROJECTEDCRS": true}
	geographicKeywords = map[string]bool{
		"GEOGCS": true, "GEOGCRS": true, "GEODCRS": true,
		"GEOGRAPHICCRS": true, "GEODETICCRS": true, "GEOCCS": true,
	}
	compoundKeywords = map[string]bool{"COMPD_CS": true, "COMPOUNDCRS": true}
)

// ParseWKT extracts name, authority code, kind and units from a WKT1 or WKT2
// definition. ESRI-flavoured WKT carries no AUTHORITY node; well known ESRI
// names are mapped to their EPSG codes.
func ParseWKT(s string) (CRS, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	if s == "" {
		return CRS{}, ErrEmptyWKT
	}
	root, err := parseNode(s)
	if err != nil {
		return CRS{}, err
	}
	c := CRS{WKT: s}
	top := root
	if compoundKeywords[top.keyword] {
		for _, ch := range top.children {
			if projectedKeywords[ch.keyword] || geographicKeywords[ch.keyword] {
				top = ch
				break
			}
		}
		c.EPSG = authorityCode(root)
	}
	switch {
	case projectedKeywords[top.keyword]:
		c.Kind = Projected
	case geographicKeywords[top.keyword]:
		c.Kind = Geographic
	default:
		return CRS{}, fmt.Errorf("crs: unsupported wkt root %q", top.keyword)
	}
	if len(top.values) > 0 {
		c.Name = top.values[0]
	}
	if c.EPSG == 0 {
		c.EPSG = authorityCode(top)
	}
	if c.EPSG == 0 {
		c.EPSG = esriCode(c.Name, c.Kind)
	}
	c.Units, c.UnitsToMeters = units(top, c.Kind)
	return c, nil
}

// LoadPRJ reads the .prj sidecar of a dataset. A missing sidecar is not an
// error; it yields the zero CRS.
func LoadPRJ(datasetPath string) (CRS, error) {
	base := strings.TrimSuffix(datasetPath, filepath.Ext(datasetPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		b, err := os.ReadFile(base + ext)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return CRS{}, fmt.Errorf("read prj: %w", err)
		}
		c, err := ParseWKT(string(b))
		if err != nil {
			return CRS{}, fmt.Errorf("parse %s: %w", filepath.Base(base+ext), err)
		}
		return c, nil
	}
	return CRS{}, nil
}

// FromEPSG builds a CRS for a bare EPSG code. Codes 4000-4999 are treated as
// geographic, everything else as projected.
func FromEPSG(code int) CRS {
	c := CRS{Name: "EPSG:" + strconv.Itoa(code), EPSG: code, Kind: Projected}
	switch {
	case code == 4326:
		c.Name = "WGS 84"
		c.Kind = Geographic
		c.Units = "degree"
	case code >= 4000 && code < 5000:
		c.Kind = Geographic
		c.Units = "degree"
	case code == 3857:
		c.Name = "WGS 84 / Pseudo-Mercator"
		c.Units, c.UnitsToMeters = "metre", 1
	case code > 32600 && code <= 32660:
		c.Name = fmt.Sprintf("WGS 84 / UTM zone %dN", code-32600)
		c.Units, c.UnitsToMeters = "metre", 1
	case code > 32700 && code <= 32760:
		c.Name = fmt.Sprintf("WGS 84 / UTM zone %dS", code-32700)
		c.Units, c.UnitsToMeters = "metre", 1
	}
	return c
}

func authorityCode(n *node) int {
	for _, ch := range n.children {
		if ch.keyword != "AUTHORITY" && ch.keyword != "ID" {
			continue
		}
		if len(ch.values) < 2 || !strings.EqualFold(ch.values[0], "EPSG") {
			continue
		}
		if code, err := strconv.Atoi(ch.values[1]); err == nil {
			return code
		}
	}
	return 0
}

func esriCode(name string, kind Kind) int {
	n := strings.ToLower(name)
	switch {
	case kind == Geographic && (n == "gcs_wgs_1984" || n == "wgs 84" || n == "wgs84"):
		return 4326
	case n == "wgs_1984_web_mercator_auxiliary_sphere" || n == "wgs 84 / pseudo-mercator":
		return 3857
	}
	if m := utmName.FindStringSubmatch(name); m != nil {
		zone, _ := strconv.Atoi(m[1])
		if zone < 1 || zone > 60 {
			return 0
		}
		if strings.EqualFold(m[2], "n") {
			return 32600 + zone
		}
		return 32700 + zone
	}
	return 0
}

func units(n *node, kind Kind) (string, float64) {
	find := func(nodes []*node) (string, float64, bool) {
		for _, ch := range nodes {
			if ch.keyword != "UNIT" && ch.keyword != "LENGTHUNIT" && ch.keyword != "ANGLEUNIT" {
				continue
			}
			if len(ch.values) == 0 {
				continue
			}
			f := 0.0
			if len(ch.values) > 1 {
				f, _ = strconv.ParseFloat(ch.values[1], 64)
			}
			return ch.values[0], f, true
		}
		return "", 0, false
	}
	name, f, ok := find(n.children)
	if !ok {
		// WKT2 puts the unit inside CS/AXIS nodes
		for _, ch := range n.children {
			if ch.keyword == "AXIS" {
				if name, f, ok = find(ch.children); ok {
					break
				}
			}
		}
	}
	if !ok {
		return "", 0
	}
	if kind == Geographic {
		return strings.ToLower(name), 0
	}
	switch strings.ToLower(name) {
	case "metre", "meter", "m":
		return "metre", 1
	}
	return name, f
}
