package topology

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/darabos/katana/internal/core/domain"
)

// LayoutVersion is the current view blob layout. Blobs with another layout
// are ignored by loaders and rebuilt.
const LayoutVersion = 1

// Header is the JSON header of a view blob.
type Header struct {
	Kind          Kind      `json:"kind"`
	LayoutVersion int       `json:"layout_version"`
	NumNodes      int       `json:"num_nodes"`
	NumEdges      int       `json:"num_edges"`
	Sections      []Section `json:"sections"`
}

// Section describes one little-endian array in the data block.
type Section struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
	Count int    `json:"count"`
}

type u32Field struct {
	name string
	ptr  *[]uint32
}

type u64Field struct {
	name string
	ptr  *[]uint64
}

// fields lists every array of v in persisted order.
func (v *View) fields() ([]u32Field, []u64Field) {
	return []u32Field{
			{"dests", &v.Dests},
			{"node_permutation", &v.NodePermutation},
			{"edge_types", &v.EdgeTypes},
			{"edge_type_index", &v.EdgeTypeIndex},
			{"in_sources", &v.InSources},
		}, []u64Field{
			{"offsets", &v.Offsets},
			{"edge_permutation", &v.EdgePermutation},
			{"out_type_offsets", &v.OutTypeOffsets},
			{"in_offsets", &v.InOffsets},
			{"in_edge_permutation", &v.InEdgePermutation},
			{"in_type_offsets", &v.InTypeOffsets},
		}
}

// Encode writes v as a checksummed blob:
// [magic][hdrLen:4][hdrJSON][dataLen:8][data][sha256].
// Only non-nil arrays are written.
func (v *View) Encode(w io.Writer) error {
	hdr := Header{
		Kind:          v.Kind,
		LayoutVersion: LayoutVersion,
		NumNodes:      v.NumNodes,
		NumEdges:      v.NumEdges,
	}

	var data []byte
	u32s, u64s := v.fields()
	for _, f := range u32s {
		if *f.ptr == nil {
			continue
		}
		hdr.Sections = append(hdr.Sections, Section{Name: f.name, Width: 4, Count: len(*f.ptr)})
		for _, x := range *f.ptr {
			data = binary.LittleEndian.AppendUint32(data, x)
		}
	}
	for _, f := range u64s {
		if *f.ptr == nil {
			continue
		}
		hdr.Sections = append(hdr.Sections, Section{Name: f.name, Width: 8, Count: len(*f.ptr)})
		for _, x := range *f.ptr {
			data = binary.LittleEndian.AppendUint64(data, x)
		}
	}

	return writeFrame(w, viewMagic, hdr, data)
}

// MarshalBinary encodes v into a byte slice.
func (v *View) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a view blob. A bad magic, checksum or section layout is
// reported as domain.ErrCorrupt.
func Decode(r io.Reader) (*View, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.ErrIOFailure.WithDetails("read view blob").WithCause(err)
	}
	return Unmarshal(raw)
}

// Unmarshal decodes a view blob held in memory.
func Unmarshal(raw []byte) (*View, error) {
	corrupt := func(format string, args ...any) error {
		return domain.ErrCorrupt.WithDetailf("view blob: "+format, args...)
	}

	var hdr Header
	data, err := readFrame(raw, viewMagic, "view blob", &hdr)
	if err != nil {
		return nil, err
	}

	if hdr.LayoutVersion != LayoutVersion {
		return nil, corrupt("layout version %d, want %d", hdr.LayoutVersion, LayoutVersion)
	}

	v := &View{Kind: hdr.Kind, NumNodes: hdr.NumNodes, NumEdges: hdr.NumEdges}
	u32s, u64s := v.fields()
	byName32 := make(map[string]*[]uint32, len(u32s))
	for _, f := range u32s {
		byName32[f.name] = f.ptr
	}
	byName64 := make(map[string]*[]uint64, len(u64s))
	for _, f := range u64s {
		byName64[f.name] = f.ptr
	}

	for _, s := range hdr.Sections {
		if s.Count < 0 || uint64(s.Count)*uint64(s.Width) > uint64(len(data)) {
			return nil, corrupt("section %s overruns data", s.Name)
		}
		switch s.Width {
		case 4:
			ptr, ok := byName32[s.Name]
			if !ok || *ptr != nil {
				return nil, corrupt("unexpected 32-bit section %q", s.Name)
			}
			out := make([]uint32, s.Count)
			for i := range out {
				out[i] = binary.LittleEndian.Uint32(data[4*i:])
			}
			*ptr = out
		case 8:
			ptr, ok := byName64[s.Name]
			if !ok || *ptr != nil {
				return nil, corrupt("unexpected 64-bit section %q", s.Name)
			}
			out := make([]uint64, s.Count)
			for i := range out {
				out[i] = binary.LittleEndian.Uint64(data[8*i:])
			}
			*ptr = out
		default:
			return nil, corrupt("section %s has width %d", s.Name, s.Width)
		}
		data = data[s.Count*s.Width:]
	}
	if len(data) != 0 {
		return nil, corrupt("%d trailing bytes", len(data))
	}

	if err := v.checkShape(); err != nil {
		return nil, err
	}
	return v, nil
}

// checkShape verifies array lengths against the header counts.
func (v *View) checkShape() error {
	if !v.Kind.Valid() {
		return domain.ErrCorrupt.WithDetailf("view blob: unknown kind %d", uint8(v.Kind))
	}
	n, e := v.NumNodes, v.NumEdges
	bad := func(name string, got, want int) error {
		return domain.ErrCorrupt.WithDetailf("view blob %s: %s has %d entries, want %d", v.Kind, name, got, want)
	}

	if len(v.Offsets) != n+1 {
		return bad("offsets", len(v.Offsets), n+1)
	}
	if len(v.Dests) != e {
		return bad("dests", len(v.Dests), e)
	}
	if v.EdgePermutation != nil && len(v.EdgePermutation) != e {
		return bad("edge_permutation", len(v.EdgePermutation), e)
	}
	if v.NodePermutation != nil && len(v.NodePermutation) != n {
		return bad("node_permutation", len(v.NodePermutation), n)
	}
	if v.EdgeTypes != nil && len(v.EdgeTypes) != e {
		return bad("edge_types", len(v.EdgeTypes), e)
	}
	if v.Kind == EdgeTypeAwareBiDirectional {
		t := len(v.EdgeTypeIndex)
		if len(v.OutTypeOffsets) != n*t+1 {
			return bad("out_type_offsets", len(v.OutTypeOffsets), n*t+1)
		}
		if len(v.InTypeOffsets) != n*t+1 {
			return bad("in_type_offsets", len(v.InTypeOffsets), n*t+1)
		}
		if len(v.InOffsets) != n+1 {
			return bad("in_offsets", len(v.InOffsets), n+1)
		}
		if len(v.InSources) != e {
			return bad("in_sources", len(v.InSources), e)
		}
		if len(v.InEdgePermutation) != e {
			return bad("in_edge_permutation", len(v.InEdgePermutation), e)
		}
	}
	return nil
}
