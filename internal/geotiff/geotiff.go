// Package geotiff reads and writes single-band GeoTIFF rasters: byte-typed
// land-cover class grids and float32 value grids. It covers the subset of
// the format the NLCD services produce (classic little- or big-endian TIFF,
// stripped layout, none or deflate compression, GeoTIFF keys for the CRS
// and a GDAL-style nodata tag). Tiled layouts and BigTIFF are out of scope.
package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

// TIFF tag IDs.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagTileWidth       = 322
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeFloat  = 11
	typeDouble = 12
)

// Compression codes. 32946 is the pre-registration deflate code some
// writers still emit.
const (
	compressionNone       = 1
	compressionDeflate    = 8
	compressionDeflateOld = 32946
)

// GeoTIFF key IDs.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedCS    = 3072
)

const (
	sampleFormatUint  = 1
	sampleFormatFloat = 3
)

// EncodeClassGrid writes a uint8 grid as a deflate-compressed GeoTIFF.
func EncodeClassGrid(w io.Writer, g *domain.Grid[uint8]) error {
	raw := make([]byte, len(g.Data))
	copy(raw, g.Data)
	nodata := strconv.FormatUint(uint64(g.NoData), 10)
	return encode(w, g.Def, raw, 8, sampleFormatUint, nodata)
}

// EncodeValueGrid writes a float32 grid as a deflate-compressed GeoTIFF.
func EncodeValueGrid(w io.Writer, g *domain.Grid[float32]) error {
	raw := make([]byte, 4*len(g.Data))
	for i, v := range g.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	nodata := strconv.FormatFloat(float64(g.NoData), 'g', -1, 32)
	return encode(w, g.Def, raw, 32, sampleFormatFloat, nodata)
}

// DecodeClassGrid reads a single-band 8-bit unsigned GeoTIFF.
func DecodeClassGrid(r io.Reader) (*domain.Grid[uint8], error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	if img.bitsPerSample != 8 || img.sampleFormat != sampleFormatUint {
		return nil, fmt.Errorf("%w: want 8-bit unsigned samples, got %d-bit format %d",
			domain.ErrUnsupportedFormat, img.bitsPerSample, img.sampleFormat)
	}
	g := &domain.Grid[uint8]{Def: img.def, NoData: uint8(img.noData), Data: img.raw}
	return g, nil
}

// DecodeValueGrid reads a single-band 32-bit float GeoTIFF.
func DecodeValueGrid(r io.Reader) (*domain.Grid[float32], error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	if img.bitsPerSample != 32 || img.sampleFormat != sampleFormatFloat {
		return nil, fmt.Errorf("%w: want 32-bit float samples, got %d-bit format %d",
			domain.ErrUnsupportedFormat, img.bitsPerSample, img.sampleFormat)
	}
	data := make([]float32, len(img.raw)/4)
	for i := range data {
		data[i] = math.Float32frombits(img.order.Uint32(img.raw[4*i:]))
	}
	g := &domain.Grid[float32]{Def: img.def, NoData: float32(img.noData), Data: data}
	return g, nil
}

// ifdEntry is one directory entry before serialization. Out-of-line values
// get their offset patched once the aux block positions are known.
type ifdEntry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	value     uint32 // inline value or offset
	aux       []byte // out-of-line payload, nil when inline
}

func encode(w io.Writer, def domain.GridDef, raw []byte, bits uint16, format uint16, nodata string) error {
	if def.Rows <= 0 || def.Cols <= 0 {
		return fmt.Errorf("%w: empty grid", domain.ErrInvalidInput)
	}
	bytesPerPixel := int(bits / 8)
	if len(raw) != def.Rows*def.Cols*bytesPerPixel {
		return fmt.Errorf("%w: grid data length %d does not match %dx%d",
			domain.ErrInvalidInput, len(raw), def.Rows, def.Cols)
	}

	var strip bytes.Buffer
	zw := zlib.NewWriter(&strip)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress strip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress strip: %w", err)
	}
	stripBytes := strip.Bytes()
	if len(stripBytes)%2 == 1 {
		stripBytes = append(stripBytes, 0)
	}

	geoKeys, err := geoKeyDirectory(def.SRID)
	if err != nil {
		return err
	}

	entries := []ifdEntry{
		{tag: tagImageWidth, fieldType: typeLong, count: 1, value: uint32(def.Cols)},
		{tag: tagImageLength, fieldType: typeLong, count: 1, value: uint32(def.Rows)},
		{tag: tagBitsPerSample, fieldType: typeShort, count: 1, value: uint32(bits)},
		{tag: tagCompression, fieldType: typeShort, count: 1, value: compressionDeflate},
		{tag: tagPhotometric, fieldType: typeShort, count: 1, value: 1},
		{tag: tagStripOffsets, fieldType: typeLong, count: 1, value: 8},
		{tag: tagSamplesPerPixel, fieldType: typeShort, count: 1, value: 1},
		{tag: tagRowsPerStrip, fieldType: typeLong, count: 1, value: uint32(def.Rows)},
		{tag: tagStripByteCounts, fieldType: typeLong, count: 1, value: uint32(strip.Len())},
		{tag: tagPlanarConfig, fieldType: typeShort, count: 1, value: 1},
		{tag: tagSampleFormat, fieldType: typeShort, count: 1, value: uint32(format)},
		{tag: tagModelPixelScale, fieldType: typeDouble, count: 3,
			aux: doublesLE(def.CellSize, def.CellSize, 0)},
		{tag: tagModelTiepoint, fieldType: typeDouble, count: 6,
			aux: doublesLE(0, 0, 0, def.OriginX, def.OriginY, 0)},
		{tag: tagGeoKeyDirectory, fieldType: typeShort, count: uint32(len(geoKeys)),
			aux: shortsLE(geoKeys)},
		{tag: tagGDALNoData, fieldType: typeASCII, count: uint32(len(nodata) + 1),
			aux: append([]byte(nodata), 0)},
	}

	// Layout: header, strip, aux payloads, IFD.
	offset := uint32(8 + len(stripBytes))
	for i := range entries {
		if entries[i].aux == nil {
			continue
		}
		if len(entries[i].aux) <= 4 {
			var inline [4]byte
			copy(inline[:], entries[i].aux)
			entries[i].value = binary.LittleEndian.Uint32(inline[:])
			entries[i].aux = nil
			continue
		}
		if len(entries[i].aux)%2 == 1 {
			entries[i].aux = append(entries[i].aux, 0)
		}
		entries[i].value = offset
		offset += uint32(len(entries[i].aux))
	}
	ifdOffset := offset

	var buf bytes.Buffer
	buf.WriteString("II")
	writeLE(&buf, uint16(42))
	writeLE(&buf, ifdOffset)
	buf.Write(stripBytes)
	for _, e := range entries {
		buf.Write(e.aux)
	}

	writeLE(&buf, uint16(len(entries)))
	for _, e := range entries {
		writeLE(&buf, e.tag)
		writeLE(&buf, e.fieldType)
		writeLE(&buf, e.count)
		writeLE(&buf, e.value)
	}
	writeLE(&buf, uint32(0)) // no further directories

	_, err = w.Write(buf.Bytes())
	return err
}

func geoKeyDirectory(srid int) ([]uint16, error) {
	switch srid {
	case domain.SRIDWGS84:
		return []uint16{
			1, 1, 0, 3,
			keyModelType, 0, 1, 2,
			keyRasterType, 0, 1, 1,
			keyGeographicType, 0, 1, uint16(srid),
		}, nil
	case domain.SRIDConusAlbers:
		return []uint16{
			1, 1, 0, 3,
			keyModelType, 0, 1, 1,
			keyRasterType, 0, 1, 1,
			keyProjectedCS, 0, 1, uint16(srid),
		}, nil
	default:
		return nil, fmt.Errorf("%w: no GeoTIFF keys for EPSG:%d", domain.ErrCRSMismatch, srid)
	}
}

func writeLE(buf *bytes.Buffer, v any) {
	binary.Write(buf, binary.LittleEndian, v) //nolint:errcheck // bytes.Buffer cannot fail
}

func doublesLE(vs ...float64) []byte {
	out := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func shortsLE(vs []uint16) []byte {
	out := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(out[2*i:], v)
	}
	return out
}

// image is a decoded single-band raster before type checking.
type image struct {
	def           domain.GridDef
	raw           []byte
	bitsPerSample uint16
	sampleFormat  uint16
	noData        float64
	order         binary.ByteOrder
}

// field is a parsed IFD entry with access to the file for out-of-line data.
type field struct {
	fieldType uint16
	count     uint32
	inline    [4]byte
	data      []byte // file contents
	order     binary.ByteOrder
}

func decode(r io.Reader) (*image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read TIFF: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: truncated TIFF header", domain.ErrUnsupportedFormat)
	}

	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a TIFF file", domain.ErrUnsupportedFormat)
	}
	if order.Uint16(data[2:]) != 42 {
		return nil, fmt.Errorf("%w: not a classic TIFF (BigTIFF?)", domain.ErrUnsupportedFormat)
	}

	fields, err := parseIFD(data, order, order.Uint32(data[4:]))
	if err != nil {
		return nil, err
	}
	if _, tiled := fields[tagTileWidth]; tiled {
		return nil, fmt.Errorf("%w: tiled TIFF layout", domain.ErrUnsupportedFormat)
	}

	cols, err := requiredInt(fields, tagImageWidth)
	if err != nil {
		return nil, err
	}
	rows, err := requiredInt(fields, tagImageLength)
	if err != nil {
		return nil, err
	}

	bits := uint16(intOrDefault(fields, tagBitsPerSample, 1))
	format := uint16(intOrDefault(fields, tagSampleFormat, sampleFormatUint))
	compression := intOrDefault(fields, tagCompression, compressionNone)
	samples := intOrDefault(fields, tagSamplesPerPixel, 1)
	if samples != 1 {
		return nil, fmt.Errorf("%w: %d samples per pixel, want single band", domain.ErrUnsupportedFormat, samples)
	}
	if bits != 8 && bits != 32 {
		return nil, fmt.Errorf("%w: %d bits per sample", domain.ErrUnsupportedFormat, bits)
	}

	raw, err := readStrips(fields, compression, rows*cols*int(bits/8))
	if err != nil {
		return nil, err
	}

	def, err := gridDef(fields, rows, cols)
	if err != nil {
		return nil, err
	}

	img := &image{
		def:           def,
		raw:           raw,
		bitsPerSample: bits,
		sampleFormat:  format,
		order:         order,
	}
	if f, ok := fields[tagGDALNoData]; ok {
		s := strings.TrimRight(strings.TrimSpace(f.ascii()), "\x00")
		s = strings.TrimSpace(s)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			img.noData = v
		}
	}
	return img, nil
}

func parseIFD(data []byte, order binary.ByteOrder, offset uint32) (map[uint16]field, error) {
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("%w: IFD offset out of range", domain.ErrUnsupportedFormat)
	}
	count := int(order.Uint16(data[offset:]))
	end := int(offset) + 2 + count*12
	if end > len(data) {
		return nil, fmt.Errorf("%w: truncated IFD", domain.ErrUnsupportedFormat)
	}

	fields := make(map[uint16]field, count)
	for i := 0; i < count; i++ {
		base := int(offset) + 2 + i*12
		f := field{
			fieldType: order.Uint16(data[base+2:]),
			count:     order.Uint32(data[base+4:]),
			data:      data,
			order:     order,
		}
		copy(f.inline[:], data[base+8:base+12])
		fields[order.Uint16(data[base:])] = f
	}
	return fields, nil
}

// typeSize returns the byte size of a TIFF field type, 0 when unknown.
func typeSize(fieldType uint16) int {
	switch fieldType {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong, typeFloat:
		return 4
	case typeDouble:
		return 8
	default:
		return 0
	}
}

// payload returns the raw value bytes, inline or out-of-line.
func (f field) payload() []byte {
	size := typeSize(f.fieldType) * int(f.count)
	if size <= 0 {
		return nil
	}
	if size <= 4 {
		return f.inline[:size]
	}
	off := int(f.order.Uint32(f.inline[:]))
	if off+size > len(f.data) {
		return nil
	}
	return f.data[off : off+size]
}

func (f field) ints() []int {
	p := f.payload()
	if p == nil {
		return nil
	}
	out := make([]int, f.count)
	for i := range out {
		switch f.fieldType {
		case typeByte:
			out[i] = int(p[i])
		case typeShort:
			out[i] = int(f.order.Uint16(p[2*i:]))
		case typeLong:
			out[i] = int(f.order.Uint32(p[4*i:]))
		default:
			return nil
		}
	}
	return out
}

func (f field) doubles() []float64 {
	p := f.payload()
	if p == nil {
		return nil
	}
	out := make([]float64, f.count)
	for i := range out {
		switch f.fieldType {
		case typeFloat:
			out[i] = float64(math.Float32frombits(f.order.Uint32(p[4*i:])))
		case typeDouble:
			out[i] = math.Float64frombits(f.order.Uint64(p[8*i:]))
		default:
			return nil
		}
	}
	return out
}

func (f field) ascii() string {
	return string(f.payload())
}

func requiredInt(fields map[uint16]field, tag uint16) (int, error) {
	f, ok := fields[tag]
	if !ok {
		return 0, fmt.Errorf("%w: missing TIFF tag %d", domain.ErrUnsupportedFormat, tag)
	}
	vs := f.ints()
	if len(vs) == 0 {
		return 0, fmt.Errorf("%w: unreadable TIFF tag %d", domain.ErrUnsupportedFormat, tag)
	}
	return vs[0], nil
}

func intOrDefault(fields map[uint16]field, tag uint16, def int) int {
	f, ok := fields[tag]
	if !ok {
		return def
	}
	vs := f.ints()
	if len(vs) == 0 {
		return def
	}
	return vs[0]
}

func readStrips(fields map[uint16]field, compression, want int) ([]byte, error) {
	offsetsField, ok := fields[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("%w: missing strip offsets", domain.ErrUnsupportedFormat)
	}
	countsField, ok := fields[tagStripByteCounts]
	if !ok {
		return nil, fmt.Errorf("%w: missing strip byte counts", domain.ErrUnsupportedFormat)
	}
	offsets := offsetsField.ints()
	counts := countsField.ints()
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: inconsistent strip layout", domain.ErrUnsupportedFormat)
	}

	raw := make([]byte, 0, want)
	data := offsetsField.data
	for i := range offsets {
		if offsets[i]+counts[i] > len(data) {
			return nil, fmt.Errorf("%w: strip %d out of range", domain.ErrUnsupportedFormat, i)
		}
		strip := data[offsets[i] : offsets[i]+counts[i]]
		switch compression {
		case compressionNone:
			raw = append(raw, strip...)
		case compressionDeflate, compressionDeflateOld:
			zr, err := zlib.NewReader(bytes.NewReader(strip))
			if err != nil {
				return nil, fmt.Errorf("decompress strip %d: %w", i, err)
			}
			expanded, err := io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return nil, fmt.Errorf("decompress strip %d: %w", i, err)
			}
			raw = append(raw, expanded...)
		default:
			return nil, fmt.Errorf("%w: compression scheme %d", domain.ErrUnsupportedFormat, compression)
		}
	}
	if len(raw) < want {
		return nil, fmt.Errorf("%w: %d pixel bytes, want %d", domain.ErrUnsupportedFormat, len(raw), want)
	}
	return raw[:want], nil
}

func gridDef(fields map[uint16]field, rows, cols int) (domain.GridDef, error) {
	var def domain.GridDef
	def.Rows = rows
	def.Cols = cols

	scaleField, ok := fields[tagModelPixelScale]
	if !ok {
		return def, fmt.Errorf("%w: missing model pixel scale", domain.ErrUnsupportedFormat)
	}
	scale := scaleField.doubles()
	if len(scale) < 2 || scale[0] <= 0 {
		return def, fmt.Errorf("%w: unreadable model pixel scale", domain.ErrUnsupportedFormat)
	}
	def.CellSize = scale[0]

	tieField, ok := fields[tagModelTiepoint]
	if !ok {
		return def, fmt.Errorf("%w: missing model tiepoint", domain.ErrUnsupportedFormat)
	}
	tie := tieField.doubles()
	if len(tie) < 6 {
		return def, fmt.Errorf("%w: unreadable model tiepoint", domain.ErrUnsupportedFormat)
	}
	// Tiepoint maps raster (i, j) to model (x, y); shift back to the
	// outer top-left corner.
	def.OriginX = tie[3] - tie[0]*scale[0]
	def.OriginY = tie[4] + tie[1]*scale[1]

	if keysField, ok := fields[tagGeoKeyDirectory]; ok {
		keys := keysField.ints()
		for i := 4; i+4 <= len(keys); i += 4 {
			switch keys[i] {
			case keyGeographicType:
				def.SRID = keys[i+3]
			case keyProjectedCS:
				def.SRID = keys[i+3]
			}
		}
	}
	return def, nil
}
