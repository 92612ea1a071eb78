package geotiff

import (
	"strings"

	"tilexport/internal/crs"
)

// GeoKey IDs and values from the GeoTIFF 1.1 key registry.
const (
	keyModelType       = 1024
	keyRasterType      = 1025
	keyCitation        = 1026
	keyGeographicType  = 2048
	keyGeogAngularUnit = 2054
	keyProjectedCSType = 3072
	keyProjLinearUnits = 3076

	modelProjected   = 1
	modelGeographic  = 2
	userDefined      = 32767
	rasterPixelArea  = 1
	unitMetre        = 9001
	unitDegree       = 9102
	esriPECitation   = "ESRI PE String = "
	asciiParamsSep   = '|'
	geoKeyDirVersion = 1
)

type geoKey struct {
	id    uint16
	loc   uint16
	count uint16
	value uint16
}

// geoKeys returns the key directory and GeoAsciiParams for c.
func geoKeys(c crs.CRS) ([]uint16, string) {
	var keys []geoKey
	var ascii strings.Builder
	addASCII := func(id uint16, s string) {
		s = strings.ReplaceAll(s, string(asciiParamsSep), "/")
		keys = append(keys, geoKey{id: id, loc: tagGeoASCIIParams, count: uint16(len(s) + 1), value: uint16(ascii.Len())})
		ascii.WriteString(s)
		ascii.WriteByte(asciiParamsSep)
	}
	short := func(id, v uint16) { keys = append(keys, geoKey{id: id, count: 1, value: v}) }

	switch {
	case c.Kind == crs.Projected:
		short(keyModelType, modelProjected)
	case c.Kind == crs.Geographic:
		short(keyModelType, modelGeographic)
	case !c.IsZero():
		short(keyModelType, userDefined)
	}
	short(keyRasterType, rasterPixelArea)
	if cit := citation(c); cit != "" {
		addASCII(keyCitation, cit)
	}
	if encodable(c.EPSG) {
		if c.Kind == crs.Geographic {
			short(keyGeographicType, uint16(c.EPSG))
		} else {
			short(keyProjectedCSType, uint16(c.EPSG))
		}
	}
	if c.Kind == crs.Geographic {
		short(keyGeogAngularUnit, unitDegree)
	}
	if c.Metric() {
		short(keyProjLinearUnits, unitMetre)
	}

	dir := []uint16{geoKeyDirVersion, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k.id, k.loc, k.count, k.value)
	}
	return dir, ascii.String()
}

// encodable reports whether code fits a SHORT GeoKey value below the
// user-defined marker.
func encodable(code int) bool { return code > 0 && code < userDefined }

// citation names the CRS. Without a code the key directory can carry, the
// full WKT goes in, in the form GDAL reads back as an ESRI projection
// string.
func citation(c crs.CRS) string {
	if !encodable(c.EPSG) && c.WKT != "" {
		return esriPECitation + strings.Join(strings.Fields(c.WKT), " ")
	}
	return c.Name
}

type keyInfo struct {
	modelType int
	epsg      int
	citation  string
}

func parseGeoKeys(dir []uint16, ascii string) keyInfo {
	var ki keyInfo
	if len(dir) < 4 {
		return ki
	}
	n := int(dir[3])
	for i := 0; i < n && 4+i*4+3 < len(dir); i++ {
		k := dir[4+i*4 : 8+i*4]
		id, loc, count, val := k[0], k[1], k[2], k[3]
		switch {
		case id == keyModelType && loc == 0:
			ki.modelType = int(val)
		case (id == keyProjectedCSType || id == keyGeographicType) && loc == 0:
			ki.epsg = int(val)
		case id == keyCitation && loc == tagGeoASCIIParams:
			end := int(val) + int(count)
			if int(val) <= len(ascii) && end <= len(ascii)+1 {
				s := ascii[val:min(end, len(ascii))]
				ki.citation = strings.TrimRight(s, string(asciiParamsSep))
			}
		}
	}
	return ki
}
