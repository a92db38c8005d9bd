package index

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/annotab/annotab/pkg/types"
	"github.com/spaolacci/murmur3"
)

// KeySet is a hash set of row keys. Keys are bucketed by a murmur3
// fingerprint and compared exactly within a bucket, so fingerprint collisions
// never merge distinct keys. Missing values are equal to each other.
type KeySet struct {
	keys    [][]types.Value
	buckets map[uint64][]int
}

// NewKeySet creates an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{buckets: make(map[uint64][]int)}
}

// KeySetOf creates a key set holding the rows of idx. For duplicate keys the
// first position wins.
func KeySetOf(idx *Index) *KeySet {
	s := NewKeySet()
	for r := 0; r < idx.Len(); r++ {
		s.Add(idx.Row(r))
	}
	return s
}

// Add inserts key and returns its position. added is false when an equal key
// was already present, in which case the existing position is returned.
func (s *KeySet) Add(key []types.Value) (pos int, added bool) {
	h := Fingerprint(key)
	for _, p := range s.buckets[h] {
		if keysEqual(s.keys[p], key) {
			return p, false
		}
	}
	pos = len(s.keys)
	s.keys = append(s.keys, key)
	s.buckets[h] = append(s.buckets[h], pos)
	return pos, true
}

// Find returns the position of key.
func (s *KeySet) Find(key []types.Value) (int, bool) {
	for _, p := range s.buckets[Fingerprint(key)] {
		if keysEqual(s.keys[p], key) {
			return p, true
		}
	}
	return -1, false
}

// Contains reports whether key is in the set.
func (s *KeySet) Contains(key []types.Value) bool {
	_, ok := s.Find(key)
	return ok
}

// Len returns the number of distinct keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// Keys returns the distinct keys in insertion order.
func (s *KeySet) Keys() [][]types.Value {
	return s.keys
}

// Fingerprint hashes a row key. Equal keys have equal fingerprints.
func Fingerprint(key []types.Value) uint64 {
	h := murmur3.New64()
	var buf [9]byte
	for _, v := range key {
		buf[0] = typeTag(v.Type())
		n := 1
		switch v.Type() {
		case "":
		case types.IntType, types.BoolType, types.TimeType:
			binary.LittleEndian.PutUint64(buf[1:], uint64(v.AsInt()))
			n = 9
		case types.FloatType:
			f := v.AsFloat()
			if f == 0 {
				f = 0 // -0 == 0
			}
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(f))
			n = 9
		case types.DateType:
			t := v.AsDate()
			binary.LittleEndian.PutUint64(buf[1:], uint64(t.Unix())^uint64(t.Nanosecond())<<34)
			n = 9
		}
		h.Write(buf[:n])
		switch v.Type() {
		case types.StringType:
			writeBytes(h, []byte(v.AsString()))
		case types.ObjectType:
			b, err := json.Marshal(v.AsObject())
			if err == nil {
				writeBytes(h, b)
			}
		}
	}
	return h.Sum64()
}

type writer interface {
	Write(p []byte) (int, error)
}

func writeBytes(w writer, b []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	w.Write(l[:])
	w.Write(b)
}

func typeTag(d types.DataType) byte {
	for i, dt := range types.DataTypes {
		if dt == d {
			return byte(i + 1)
		}
	}
	return 0
}

func keysEqual(a, b []types.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
