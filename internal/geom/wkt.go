package geom

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ParseWKT parses a single WKT geometry.
// Supported: POINT, MULTIPOINT, LINESTRING, MULTILINESTRING, POLYGON,
// MULTIPOLYGON and GEOMETRYCOLLECTION.
func ParseWKT(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty wkt")
	}
	return wkt.Unmarshal(s)
}

// loadWKTFile reads one geometry per non-empty line. Lines are numbered from
// 1 and the number is stored under idField; there is no label field.
func loadWKTFile(path, idField string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l := &Layer{Fields: []string{idField}}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		g, err := ParseWKT(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		l.Features = append(l.Features, Feature{
			Attrs:    map[string]string{idField: strconv.Itoa(line)},
			Geometry: g,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if l.CRS, err = sidecarCRS(path); err != nil {
		return nil, err
	}
	return l, nil
}
