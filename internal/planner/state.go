package planner

import (
	"encoding/binary"
	"hash/fnv"
	"strings"
)

// WorldState is an immutable fixed-width bitset over the atoms of a sealed
// domain. Methods never modify the receiver.
type WorldState struct {
	words []uint64
}

func newState(width int) WorldState {
	return WorldState{words: make([]uint64, (width+63)/64)}
}

func maskOf(width int, atoms []AtomID) WorldState {
	s := newState(width)
	for _, a := range atoms {
		s.words[int(a)/64] |= 1 << (uint(a) % 64)
	}
	return s
}

func (s WorldState) Has(atom AtomID) bool {
	i := int(atom) / 64
	if atom < 0 || i >= len(s.words) {
		return false
	}
	return s.words[i]&(1<<(uint(atom)%64)) != 0
}

func (s WorldState) Equal(o WorldState) bool {
	if len(s.words) != len(o.words) {
		return false
	}
	for i := range s.words {
		if s.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Hash is a 64-bit FNV-1a digest of the bits; used as the visited-set key.
func (s WorldState) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, w := range s.words {
		binary.LittleEndian.PutUint64(buf[:], w)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Atoms lists the set atoms in ascending order.
func (s WorldState) Atoms() []AtomID {
	var out []AtomID
	for i, w := range s.words {
		for b := 0; b < 64; b++ {
			if w&(1<<uint(b)) != 0 {
				out = append(out, AtomID(i*64+b))
			}
		}
	}
	return out
}

func (s WorldState) containsAll(mask WorldState) bool {
	for i, m := range mask.words {
		if s.words[i]&m != m {
			return false
		}
	}
	return true
}

func (s WorldState) intersects(mask WorldState) bool {
	for i, m := range mask.words {
		if s.words[i]&m != 0 {
			return true
		}
	}
	return false
}

func (s WorldState) apply(clear, set WorldState) WorldState {
	out := WorldState{words: make([]uint64, len(s.words))}
	for i, w := range s.words {
		out.words[i] = (w &^ clear.words[i]) | set.words[i]
	}
	return out
}

// Describe renders the set atoms by name, for logs.
func (d *Domain) Describe(s WorldState) string {
	atoms := s.Atoms()
	names := make([]string, len(atoms))
	for i, a := range atoms {
		names[i] = d.AtomName(a)
	}
	return "{" + strings.Join(names, ", ") + "}"
}
