package topology

import (
	"errors"
	"testing"

	"github.com/darabos/katana/internal/core/domain"
)

func TestFromEdges(t *testing.T) {
	topo, err := FromEdges(3,
		[]uint32{2, 0, 2, 0},
		[]uint32{0, 1, 1, 2},
		[]uint32{9, 8, 7, 6})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	wantOffsets := []uint64{0, 2, 2, 4}
	wantDests := []uint32{1, 2, 0, 1}
	wantTypes := []uint32{8, 6, 9, 7}
	for i := range wantOffsets {
		if topo.Offsets[i] != wantOffsets[i] {
			t.Fatalf("Offsets = %v, want %v", topo.Offsets, wantOffsets)
		}
	}
	for i := range wantDests {
		if topo.Dests[i] != wantDests[i] || topo.EdgeTypes[i] != wantTypes[i] {
			t.Fatalf("Dests/EdgeTypes = %v/%v, want %v/%v", topo.Dests, topo.EdgeTypes, wantDests, wantTypes)
		}
	}
	if topo.Degree(0) != 2 || topo.Degree(1) != 0 {
		t.Errorf("degrees = %d,%d, want 2,0", topo.Degree(0), topo.Degree(1))
	}
	if err := topo.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFromEdges_Invalid(t *testing.T) {
	if _, err := FromEdges(2, []uint32{0}, []uint32{5}, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("out-of-range dest error = %v, want ErrInvalidArgument", err)
	}
	if _, err := FromEdges(2, []uint32{0, 1}, []uint32{1}, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("length mismatch error = %v, want ErrInvalidArgument", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		topo Topology
		ok   bool
	}{
		{"empty", Topology{}, true},
		{"zero nodes", Topology{Offsets: []uint64{0}}, true},
		{"isolated node", Topology{Offsets: []uint64{0, 0}}, true},
		{"edges without offsets", Topology{Dests: []uint32{0}}, false},
		{"nonzero start", Topology{Offsets: []uint64{1, 1}}, false},
		{"decreasing", Topology{Offsets: []uint64{0, 2, 1}, Dests: []uint32{0}}, false},
		{"wrong edge count", Topology{Offsets: []uint64{0, 2}, Dests: []uint32{0}}, false},
		{"dest out of range", Topology{Offsets: []uint64{0, 1}, Dests: []uint32{1}}, false},
		{"short types", Topology{Offsets: []uint64{0, 1}, Dests: []uint32{0}, EdgeTypes: []uint32{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topo.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvariantViolation) {
				t.Errorf("Validate() error = %v, want ErrInvariantViolation", err)
			}
		})
	}
}

func TestKind_ParseAndText(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		if err != nil || parsed != k {
			t.Errorf("ParseKind(%q) = (%v, %v), want %v", k.String(), parsed, err, k)
		}

		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Errorf("UnmarshalText(%q) = (%v, %v), want %v", text, back, err, k)
		}
	}

	if k, err := ParseKind("bidir"); err != nil || k != EdgeTypeAwareBiDirectional {
		t.Errorf("ParseKind(bidir) = (%v, %v)", k, err)
	}
	if _, err := ParseKind("csr"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("ParseKind(csr) error = %v, want ErrInvalidArgument", err)
	}
	if Kind(0).Valid() || Kind(42).Valid() {
		t.Error("unknown kinds should be invalid")
	}
	if _, err := Kind(42).MarshalText(); err == nil {
		t.Error("MarshalText of unknown kind should fail")
	}
}
