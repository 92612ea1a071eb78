package geotiff

import (
	"fmt"
	"os"

	"tilexport/internal/extent"
)

// Info is what ReadInfo recovers from a TIFF's first IFD.
type Info struct {
	Width, Height   int
	GeoTransform    extent.GeoTransform
	HasGeoTransform bool
	ModelType       int
	EPSG            int
	Citation        string
	DPI             float64
	Tags            []uint16
}

func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	d, err := readIFD(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}

	var in Info
	for _, e := range d.entries {
		in.Tags = append(in.Tags, e.tag)
	}
	if e, ok := d.get(tagImageWidth); ok {
		if v := d.uints(e); len(v) == 1 {
			in.Width = int(v[0])
		}
	}
	if e, ok := d.get(tagImageLength); ok {
		if v := d.uints(e); len(v) == 1 {
			in.Height = int(v[0])
		}
	}
	if e, ok := d.get(tagXResolution); ok {
		if v := d.rationals(e); len(v) == 1 {
			in.DPI = v[0]
		}
	}

	scale, okS := d.get(tagModelPixelScale)
	tie, okT := d.get(tagModelTiepoint)
	mt, okM := d.get(tagModelTransformation)
	switch {
	case okM:
		if m := d.doubles(mt); len(m) == 16 {
			in.GeoTransform = extent.GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
			in.HasGeoTransform = true
		}
	case okS && okT:
		s, tp := d.doubles(scale), d.doubles(tie)
		if len(s) >= 2 && len(tp) >= 6 {
			in.GeoTransform = extent.GeoTransform{
				tp[3] - tp[0]*s[0], s[0], 0,
				tp[4] + tp[1]*s[1], 0, -s[1],
			}
			in.HasGeoTransform = true
		}
	}

	if e, ok := d.get(tagGeoKeyDirectory); ok {
		ascii := ""
		if a, ok := d.get(tagGeoASCIIParams); ok {
			ascii = d.ascii(a)
		}
		ki := parseGeoKeys(d.shorts(e), ascii)
		in.ModelType, in.EPSG, in.Citation = ki.modelType, ki.epsg, ki.citation
	}
	return in, nil
}
