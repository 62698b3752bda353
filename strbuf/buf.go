package strbuf

import (
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/buf"
	"github.com/wippyai/rowarena/errors"
)

// MaxLen is the longest string a Buf entry can hold.
const MaxLen = 255

// Buf stores strings as [len: u8][bytes] records with a parallel offset index,
// so entries are addressed by ordinal. Longer strings are truncated to at most
// MaxLen bytes, backing off to a UTF-8 rune boundary.
type Buf struct {
	b    *buf.Buf
	offs *arr.Arr[uint32]
	hash map[uint64][]int
	log  *zap.Logger
}

// NewBuf creates a pool sized for count strings in size bytes.
func NewBuf(count, size int, opts ...rowarena.Option) (*Buf, error) {
	cfg := rowarena.Apply(opts...)
	b, err := buf.New(size, opts...)
	if err != nil {
		return nil, err
	}
	offs, err := arr.New[uint32](count, opts...)
	if err != nil {
		b.Free()
		return nil, err
	}
	return &Buf{b: b, offs: offs, log: cfg.Logger}, nil
}

func (s *Buf) clip(str string) string {
	if len(str) <= MaxLen {
		return str
	}
	n := MaxLen
	for n > 0 && !utf8.RuneStart(str[n]) {
		n--
	}
	s.log.Warn("string truncated",
		zap.String("component", string(errors.PhaseStrBuf)),
		zap.Int("len", len(str)),
		zap.Int("kept", n))
	return str[:n]
}

// Add appends str and returns its ordinal.
func (s *Buf) Add(str string) (int, error) {
	str = s.clip(str)
	if err := fits(s.log, s.b.Used(), 1+len(str)); err != nil {
		return arr.NotFound, err
	}
	off, region, err := s.b.Reserve(1 + len(str))
	if err != nil {
		return arr.NotFound, err
	}
	region[0] = byte(len(str))
	copy(region[1:], str)

	id, err := s.offs.AddValue(uint32(off))
	if err != nil {
		_ = s.b.Replace(off, nil, 1+len(str))
		return arr.NotFound, err
	}
	if s.hash != nil {
		h := xxhash.Sum64String(str)
		s.hash[h] = append(s.hash[h], id)
	}
	return id, nil
}

func (s *Buf) entry(id int) (int, int, error) {
	p, err := s.offs.Get(id)
	if err != nil {
		return 0, 0, err
	}
	off := int(*p)
	hdr, err := s.b.Get(off, 1)
	if err != nil {
		return 0, 0, err
	}
	return off, int(hdr[0]), nil
}

// Get returns a zero-copy view of entry id. It is invalidated by the next mutation.
func (s *Buf) Get(id int) ([]byte, error) {
	off, n, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return s.b.Get(off+1, n)
}

// String returns a copy of entry id, or "" when id is invalid.
func (s *Buf) String(id int) string {
	p, err := s.Get(id)
	if err != nil {
		return ""
	}
	return string(p)
}

// Find returns the ordinal of the first entry equal to str. O(n).
func (s *Buf) Find(str string) int {
	for id := 0; id < s.offs.Len(); id++ {
		if p, _ := s.Get(id); string(p) == str {
			return id
		}
	}
	return arr.NotFound
}

// EnableHashIndex builds an xxhash index over the entries and keeps it current
// on every mutation, making FindHashed available.
func (s *Buf) EnableHashIndex() {
	s.hash = make(map[uint64][]int, s.offs.Len())
	for id := 0; id < s.offs.Len(); id++ {
		p, _ := s.Get(id)
		h := xxhash.Sum64(p)
		s.hash[h] = append(s.hash[h], id)
	}
}

// FindHashed returns the lowest ordinal of an entry equal to str using the hash
// index. It reports NotFound when the index is disabled.
func (s *Buf) FindHashed(str string) int {
	if s.hash == nil {
		return arr.NotFound
	}
	found := arr.NotFound
	for _, id := range s.hash[xxhash.Sum64String(str)] {
		if p, _ := s.Get(id); string(p) == str && (found == arr.NotFound || id < found) {
			found = id
		}
	}
	return found
}

func (s *Buf) unhash(id int, old []byte) {
	if s.hash == nil {
		return
	}
	h := xxhash.Sum64(old)
	ids := s.hash[h]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.hash, h)
	} else {
		s.hash[h] = ids
	}
}

func (s *Buf) rehash(id int) {
	if s.hash == nil {
		return
	}
	p, _ := s.Get(id)
	h := xxhash.Sum64(p)
	s.hash[h] = append(s.hash[h], id)
}

// renumber shifts the offsets of every entry after id by delta. O(n).
func (s *Buf) renumber(id, delta int) {
	for i := id + 1; i < s.offs.Len(); i++ {
		p, _ := s.offs.Get(i)
		*p = uint32(int(*p) + delta)
	}
}

// Set replaces entry id with str, shifting every later entry. O(n).
func (s *Buf) Set(id int, str string) error {
	off, n, err := s.entry(id)
	if err != nil {
		return err
	}
	str = s.clip(str)
	if err := fits(s.log, s.b.Used(), len(str)-n); err != nil {
		return err
	}

	old, _ := s.b.Get(off+1, n)
	s.unhash(id, old)

	rec := make([]byte, 1+len(str))
	rec[0] = byte(len(str))
	copy(rec[1:], str)
	if err := s.b.Replace(off, rec, 1+n); err != nil {
		s.rehash(id)
		return err
	}
	s.renumber(id, len(str)-n)
	s.rehash(id)
	return nil
}

// App appends str to entry id, shifting every later entry. The result is
// truncated to MaxLen. O(n).
func (s *Buf) App(id int, str string) error {
	cur, err := s.Get(id)
	if err != nil {
		return err
	}
	return s.Set(id, string(cur)+str)
}

// Len returns the number of entries.
func (s *Buf) Len() int { return s.offs.Len() }

// Free releases the pool and its index.
func (s *Buf) Free() {
	s.b.Free()
	s.offs.Free()
	s.hash = nil
}
