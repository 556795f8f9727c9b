// Package pmtiles writes single-directory PMTiles v3 archives.
//
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Compression is the compression of tiles and internal structures.
type Compression uint8

const (
	NoCompression Compression = 1
	Gzip          Compression = 2
)

// TileType is the format of tile contents.
type TileType uint8

const Mvt TileType = 1

// HeaderLen is the fixed size of the binary header.
const HeaderLen = 127

var magic = []byte("PMTiles")

// Header is the archive header. Extents are E7 degrees.
type Header struct {
	RootOffset, RootLength         uint64
	MetadataOffset, MetadataLength uint64
	LeafOffset, LeafLength         uint64
	DataOffset, DataLength         uint64
	AddressedTiles                 uint64
	TileEntries                    uint64
	TileContents                   uint64
	Clustered                      bool
	InternalCompression            Compression
	TileCompression                Compression
	TileType                       TileType
	MinZoom, MaxZoom               uint8
	MinLonE7, MinLatE7             int32
	MaxLonE7, MaxLatE7             int32
	CenterZoom                     uint8
	CenterLonE7, CenterLatE7       int32
}

// Entry locates one tile in the data section.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// Tile is one encoded tile to archive.
type Tile struct {
	Z    uint8
	X, Y uint32
	Data []byte
}

// Archive describes the content written by Write.
type Archive struct {
	Name        string
	MinZoom     uint8
	MaxZoom     uint8
	Bounds      [4]float64 // lon/lat: minLon, minLat, maxLon, maxLat
	Center      [2]float64
	CenterZoom  uint8
	Compression Compression // of the tile data as given
	Metadata    map[string]any
}

// TileID maps z/x/y to its position on the Hilbert curve of zoom z,
// offset by the tile count of all lower zooms.
func TileID(z uint8, x, y uint32) uint64 {
	id := (uint64(1)<<(2*uint64(z)) - 1) / 3
	for s := uint32(1) << z >> 1; s > 0; s >>= 1 {
		var rx, ry uint32
		if x&s != 0 {
			rx = 1
		}
		if y&s != 0 {
			ry = 1
		}
		id += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x&(s-1)
				y = s - 1 - y&(s-1)
			}
			x, y = y, x
		}
	}
	return id
}

// MarshalHeader encodes h in the fixed little-endian layout.
func MarshalHeader(h Header) []byte {
	b := make([]byte, 0, HeaderLen)
	b = append(b, magic...)
	b = append(b, 3)
	for _, v := range []uint64{
		h.RootOffset, h.RootLength,
		h.MetadataOffset, h.MetadataLength,
		h.LeafOffset, h.LeafLength,
		h.DataOffset, h.DataLength,
		h.AddressedTiles, h.TileEntries, h.TileContents,
	} {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	var clustered byte
	if h.Clustered {
		clustered = 1
	}
	b = append(b, clustered, byte(h.InternalCompression), byte(h.TileCompression), byte(h.TileType), h.MinZoom, h.MaxZoom)
	for _, v := range []int32{h.MinLonE7, h.MinLatE7, h.MaxLonE7, h.MaxLatE7} {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	b = append(b, h.CenterZoom)
	b = binary.LittleEndian.AppendUint32(b, uint32(h.CenterLonE7))
	b = binary.LittleEndian.AppendUint32(b, uint32(h.CenterLatE7))
	return b
}

// UnmarshalHeader decodes a header written by MarshalHeader.
func UnmarshalHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderLen {
		return h, errors.New("pmtiles: short header")
	}
	if !bytes.Equal(b[:7], magic) || b[7] != 3 {
		return h, errors.New("pmtiles: not a v3 archive")
	}
	u64 := func(i int) uint64 { return binary.LittleEndian.Uint64(b[8+8*i:]) }
	i32 := func(off int) int32 { return int32(binary.LittleEndian.Uint32(b[off:])) }

	h.RootOffset, h.RootLength = u64(0), u64(1)
	h.MetadataOffset, h.MetadataLength = u64(2), u64(3)
	h.LeafOffset, h.LeafLength = u64(4), u64(5)
	h.DataOffset, h.DataLength = u64(6), u64(7)
	h.AddressedTiles, h.TileEntries, h.TileContents = u64(8), u64(9), u64(10)
	h.Clustered = b[96] == 1
	h.InternalCompression = Compression(b[97])
	h.TileCompression = Compression(b[98])
	h.TileType = TileType(b[99])
	h.MinZoom, h.MaxZoom = b[100], b[101]
	h.MinLonE7, h.MinLatE7 = i32(102), i32(106)
	h.MaxLonE7, h.MaxLatE7 = i32(110), i32(114)
	h.CenterZoom = b[118]
	h.CenterLonE7, h.CenterLatE7 = i32(119), i32(123)
	return h, nil
}

// MarshalDirectory encodes entries, which must be sorted by TileID, as a
// gzipped directory.
func MarshalDirectory(entries []Entry) ([]byte, error) {
	var raw []byte
	raw = binary.AppendUvarint(raw, uint64(len(entries)))

	var last uint64
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, e.TileID-last)
		last = e.TileID
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.RunLength))
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			raw = binary.AppendUvarint(raw, 0)
			continue
		}
		raw = binary.AppendUvarint(raw, e.Offset+1)
	}
	return gzipBytes(raw)
}

// Write writes tiles as a clustered archive with a single root directory.
func Write(w io.Writer, a Archive, tiles []Tile) (Header, error) {
	if len(tiles) == 0 {
		return Header{}, errors.New("pmtiles: no tiles to write")
	}

	type placed struct {
		id   uint64
		data []byte
	}
	sorted := make([]placed, len(tiles))
	for i, t := range tiles {
		sorted[i] = placed{TileID(t.Z, t.X, t.Y), t.Data}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	entries := make([]Entry, len(sorted))
	var data bytes.Buffer
	for i, p := range sorted {
		entries[i] = Entry{TileID: p.id, Offset: uint64(data.Len()), Length: uint32(len(p.data)), RunLength: 1}
		data.Write(p.data)
	}

	root, err := MarshalDirectory(entries)
	if err != nil {
		return Header{}, fmt.Errorf("pmtiles: directory: %w", err)
	}
	meta := map[string]any{"name": a.Name, "minzoom": a.MinZoom, "maxzoom": a.MaxZoom}
	for k, v := range a.Metadata {
		meta[k] = v
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return Header{}, fmt.Errorf("pmtiles: metadata: %w", err)
	}
	metadata, err := gzipBytes(metaJSON)
	if err != nil {
		return Header{}, fmt.Errorf("pmtiles: metadata: %w", err)
	}

	compression := a.Compression
	if compression == 0 {
		compression = NoCompression
	}
	h := Header{
		RootOffset:          HeaderLen,
		RootLength:          uint64(len(root)),
		MetadataOffset:      HeaderLen + uint64(len(root)),
		MetadataLength:      uint64(len(metadata)),
		DataOffset:          HeaderLen + uint64(len(root)) + uint64(len(metadata)),
		DataLength:          uint64(data.Len()),
		AddressedTiles:      uint64(len(entries)),
		TileEntries:         uint64(len(entries)),
		TileContents:        uint64(len(entries)),
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     compression,
		TileType:            Mvt,
		MinZoom:             a.MinZoom,
		MaxZoom:             a.MaxZoom,
		MinLonE7:            e7(a.Bounds[0]),
		MinLatE7:            e7(a.Bounds[1]),
		MaxLonE7:            e7(a.Bounds[2]),
		MaxLatE7:            e7(a.Bounds[3]),
		CenterZoom:          a.CenterZoom,
		CenterLonE7:         e7(a.Center[0]),
		CenterLatE7:         e7(a.Center[1]),
	}

	for _, part := range [][]byte{MarshalHeader(h), root, metadata, data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

func e7(deg float64) int32 {
	return int32(deg * 1e7)
}

func gzipBytes(raw []byte) ([]byte, error) {
	var b bytes.Buffer
	zw, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
