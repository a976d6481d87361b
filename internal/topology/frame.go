package topology

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/darabos/katana/internal/core/domain"
)

// Blob frames: [magic:8][hdrLen:4][hdrJSON][dataLen:8][data][sha256:32].
// Lengths are big-endian; the checksum covers everything before it.
var (
	viewMagic = []byte("KTVIEW01")
	topoMagic = []byte("KTTOPO01")
)

const checksumSize = sha256.Size

func writeFrame(w io.Writer, magic []byte, hdr any, data []byte) error {
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("topology: marshal header: %w", err)
	}

	hash := sha256.New()
	mw := io.MultiWriter(w, hash)

	var hdrLen [4]byte
	binary.BigEndian.PutUint32(hdrLen[:], uint32(len(hdrJSON)))
	var dataLen [8]byte
	binary.BigEndian.PutUint64(dataLen[:], uint64(len(data)))

	for _, chunk := range [][]byte{magic, hdrLen[:], hdrJSON, dataLen[:], data} {
		if _, err := mw.Write(chunk); err != nil {
			return fmt.Errorf("topology: write frame: %w", err)
		}
	}
	if _, err := w.Write(hash.Sum(nil)); err != nil {
		return fmt.Errorf("topology: write checksum: %w", err)
	}
	return nil
}

// readFrame verifies a frame, decodes its header into hdr and returns the
// data block.
func readFrame(raw, magic []byte, what string, hdr any) ([]byte, error) {
	corrupt := func(format string, args ...any) error {
		return domain.ErrCorrupt.WithDetailf(what+": "+format, args...)
	}

	if len(raw) < len(magic)+4+8+checksumSize {
		return nil, corrupt("truncated (%d bytes)", len(raw))
	}
	body, sum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	if got := sha256.Sum256(body); !bytes.Equal(got[:], sum) {
		return nil, corrupt("checksum mismatch")
	}
	if !bytes.Equal(body[:len(magic)], magic) {
		return nil, corrupt("invalid magic bytes")
	}
	body = body[len(magic):]

	hdrLen := int(binary.BigEndian.Uint32(body))
	body = body[4:]
	if hdrLen == 0 || hdrLen > len(body)-8 {
		return nil, corrupt("header length %d", hdrLen)
	}
	if err := json.Unmarshal(body[:hdrLen], hdr); err != nil {
		return nil, corrupt("header: %v", err)
	}
	body = body[hdrLen:]

	dataLen := binary.BigEndian.Uint64(body)
	data := body[8:]
	if dataLen != uint64(len(data)) {
		return nil, corrupt("data length %d, have %d", dataLen, len(data))
	}
	return data, nil
}

type topologyHeader struct {
	NumNodes int `json:"num_nodes"`
	NumEdges int `json:"num_edges"`
}

// Encode writes the base adjacency as a checksummed blob. EdgeTypes is not
// written.
func (t *Topology) Encode(w io.Writer) error {
	offsets := t.Offsets
	if len(offsets) == 0 {
		offsets = []uint64{0}
	}
	hdr := topologyHeader{NumNodes: len(offsets) - 1, NumEdges: len(t.Dests)}

	data := make([]byte, 0, 8*len(offsets)+8*len(t.Dests))
	for _, x := range offsets {
		data = binary.LittleEndian.AppendUint64(data, x)
	}
	for _, x := range t.Dests {
		data = binary.LittleEndian.AppendUint32(data, x)
	}
	return writeFrame(w, topoMagic, hdr, data)
}

// DecodeTopology reads a base topology blob and validates it.
func DecodeTopology(raw []byte) (*Topology, error) {
	var hdr topologyHeader
	data, err := readFrame(raw, topoMagic, "topology blob", &hdr)
	if err != nil {
		return nil, err
	}

	want := 8*(hdr.NumNodes+1) + 4*hdr.NumEdges
	if hdr.NumNodes < 0 || hdr.NumEdges < 0 || len(data) != want {
		return nil, domain.ErrCorrupt.WithDetailf("topology blob: %d data bytes for %d nodes, %d edges", len(data), hdr.NumNodes, hdr.NumEdges)
	}

	t := &Topology{
		Offsets: make([]uint64, hdr.NumNodes+1),
		Dests:   make([]uint32, hdr.NumEdges),
	}
	for i := range t.Offsets {
		t.Offsets[i] = binary.LittleEndian.Uint64(data)
		data = data[8:]
	}
	for i := range t.Dests {
		t.Dests[i] = binary.LittleEndian.Uint32(data)
		data = data[4:]
	}

	if err := t.Validate(); err != nil {
		return nil, domain.ErrCorrupt.WithDetails("topology blob").WithCause(err)
	}
	return t, nil
}
