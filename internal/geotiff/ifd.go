package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

var ErrNotTIFF = errors.New("not a classic TIFF file")

// TIFF field types.
const (
	tByte      = 1
	tASCII     = 2
	tShort     = 3
	tLong      = 4
	tRational  = 5
	tSByte     = 6
	tUndefined = 7
	tSShort    = 8
	tSLong     = 9
	tSRational = 10
	tFloat     = 11
	tDouble    = 12
)

func typeSize(typ uint16) int {
	switch typ {
	case tByte, tASCII, tSByte, tUndefined:
		return 1
	case tShort, tSShort:
		return 2
	case tLong, tSLong, tFloat:
		return 4
	case tRational, tSRational, tDouble:
		return 8
	}
	return 0
}

// Baseline and GeoTIFF tag numbers used here.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagStripOffsets        = 273
	tagStripByteCounts     = 279
	tagXResolution         = 282
	tagYResolution         = 283
	tagResolutionUnit      = 296
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
)

// entry is one IFD field with its value bytes in file byte order.
type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// ifd is the first image file directory of a TIFF, fully loaded.
type ifd struct {
	order   binary.ByteOrder
	offset  uint32
	next    uint32
	entries []entry
}

func readHeader(r io.ReaderAt) (binary.ByteOrder, uint32, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNotTIFF, err)
	}
	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, ErrNotTIFF
	}
	if order.Uint16(hdr[2:4]) != 42 {
		return nil, 0, ErrNotTIFF
	}
	return order, order.Uint32(hdr[4:8]), nil
}

func readIFD(r io.ReaderAt) (*ifd, error) {
	order, off, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	var n [2]byte
	if _, err := r.ReadAt(n[:], int64(off)); err != nil {
		return nil, fmt.Errorf("read ifd at %d: %w", off, err)
	}
	count := int(order.Uint16(n[:]))
	raw := make([]byte, count*12+4)
	if _, err := r.ReadAt(raw, int64(off)+2); err != nil {
		return nil, fmt.Errorf("read ifd entries: %w", err)
	}
	d := &ifd{order: order, offset: off, next: order.Uint32(raw[count*12:])}
	for i := 0; i < count; i++ {
		b := raw[i*12 : i*12+12]
		e := entry{tag: order.Uint16(b[0:2]), typ: order.Uint16(b[2:4]), count: order.Uint32(b[4:8])}
		size := typeSize(e.typ) * int(e.count)
		if size <= 4 {
			e.data = append([]byte(nil), b[8:8+size]...)
		} else {
			e.data = make([]byte, size)
			if _, err := r.ReadAt(e.data, int64(order.Uint32(b[8:12]))); err != nil {
				return nil, fmt.Errorf("read tag %d value: %w", e.tag, err)
			}
		}
		d.entries = append(d.entries, e)
	}
	return d, nil
}

func (d *ifd) get(tag uint16) (entry, bool) {
	for _, e := range d.entries {
		if e.tag == tag {
			return e, true
		}
	}
	return entry{}, false
}

// set replaces any entry with the same tag.
func (d *ifd) set(e entry) {
	for i := range d.entries {
		if d.entries[i].tag == e.tag {
			d.entries[i] = e
			return
		}
	}
	d.entries = append(d.entries, e)
}

func (d *ifd) remove(tag uint16) {
	out := d.entries[:0]
	for _, e := range d.entries {
		if e.tag != tag {
			out = append(out, e)
		}
	}
	d.entries = out
}

// encode lays out the directory at base followed by its out-of-line
// values, each on a word boundary. Entries are sorted by tag.
func (d *ifd) encode(base uint32) []byte {
	sort.Slice(d.entries, func(i, j int) bool { return d.entries[i].tag < d.entries[j].tag })
	n := len(d.entries)
	head := make([]byte, 2+n*12+4)
	var vals []byte
	d.order.PutUint16(head, uint16(n))
	for i, e := range d.entries {
		b := head[2+i*12:]
		d.order.PutUint16(b[0:], e.tag)
		d.order.PutUint16(b[2:], e.typ)
		d.order.PutUint32(b[4:], e.count)
		if len(e.data) <= 4 {
			copy(b[8:12], e.data)
			continue
		}
		if len(vals)%2 == 1 {
			vals = append(vals, 0)
		}
		d.order.PutUint32(b[8:], base+uint32(len(head)+len(vals)))
		vals = append(vals, e.data...)
	}
	d.order.PutUint32(head[2+n*12:], d.next)
	return append(head, vals...)
}

// dataEnd is the end of the last strip or tile.
func (d *ifd) dataEnd() (uint32, error) {
	offs, ok1 := d.get(tagStripOffsets)
	cnts, ok2 := d.get(tagStripByteCounts)
	if !ok1 || !ok2 {
		offs, ok1 = d.get(tagTileOffsets)
		cnts, ok2 = d.get(tagTileByteCounts)
	}
	if !ok1 || !ok2 {
		return 0, errors.New("no strip or tile offsets")
	}
	o, c := d.uints(offs), d.uints(cnts)
	if len(o) != len(c) {
		return 0, errors.New("offset and byte count lengths differ")
	}
	var end uint32
	for i := range o {
		if e := o[i] + c[i]; e > end {
			end = e
		}
	}
	return end, nil
}

func (d *ifd) uints(e entry) []uint32 {
	out := make([]uint32, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case tByte:
			out = append(out, uint32(e.data[i]))
		case tShort:
			out = append(out, uint32(d.order.Uint16(e.data[i*2:])))
		case tLong:
			out = append(out, d.order.Uint32(e.data[i*4:]))
		}
	}
	return out
}

func (d *ifd) shorts(e entry) []uint16 {
	if e.typ != tShort {
		return nil
	}
	out := make([]uint16, e.count)
	for i := range out {
		out[i] = d.order.Uint16(e.data[i*2:])
	}
	return out
}

func (d *ifd) doubles(e entry) []float64 {
	if e.typ != tDouble {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(e.data[i*8:]))
	}
	return out
}

func (d *ifd) rationals(e entry) []float64 {
	if e.typ != tRational {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		num := d.order.Uint32(e.data[i*8:])
		den := d.order.Uint32(e.data[i*8+4:])
		if den != 0 {
			out[i] = float64(num) / float64(den)
		}
	}
	return out
}

func (d *ifd) ascii(e entry) string {
	b := e.data
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

func (d *ifd) shortEntry(tag uint16, v ...uint16) entry {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		d.order.PutUint16(b[i*2:], x)
	}
	return entry{tag: tag, typ: tShort, count: uint32(len(v)), data: b}
}

func (d *ifd) doubleEntry(tag uint16, v ...float64) entry {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		d.order.PutUint64(b[i*8:], math.Float64bits(x))
	}
	return entry{tag: tag, typ: tDouble, count: uint32(len(v)), data: b}
}

func (d *ifd) rationalEntry(tag uint16, num, den uint32) entry {
	b := make([]byte, 8)
	d.order.PutUint32(b, num)
	d.order.PutUint32(b[4:], den)
	return entry{tag: tag, typ: tRational, count: 1, data: b}
}

func asciiEntry(tag uint16, s string) entry {
	b := append([]byte(s), 0)
	return entry{tag: tag, typ: tASCII, count: uint32(len(b)), data: b}
}
