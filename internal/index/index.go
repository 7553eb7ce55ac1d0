package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// NameIndex maps a structure name to the set of message ordinals in which a
// match for that name was found. Ordinals are assigned by the caller, usually
// the position of the message in its source.
type NameIndex struct {
	bitmaps map[string]*roaring.Bitmap
}

func New() *NameIndex {
	return &NameIndex{bitmaps: make(map[string]*roaring.Bitmap)}
}

// Add records that message ordinal contains a match named name.
func (x *NameIndex) Add(name string, ordinal uint32) {
	bm, ok := x.bitmaps[name]
	if !ok {
		bm = roaring.New()
		x.bitmaps[name] = bm
	}
	bm.Add(ordinal)
}

// Messages returns the ordinals of messages matching name, ascending.
func (x *NameIndex) Messages(name string) []uint32 {
	bm, ok := x.bitmaps[name]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// Count returns how many messages matched name.
func (x *NameIndex) Count(name string) uint64 {
	bm, ok := x.bitmaps[name]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// Names returns every indexed name, sorted.
func (x *NameIndex) Names() []string {
	names := make([]string, 0, len(x.bitmaps))
	for n := range x.bitmaps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Common returns the ordinals of messages that matched every one of names.
func (x *NameIndex) Common(names ...string) []uint32 {
	if len(names) == 0 {
		return nil
	}
	var acc *roaring.Bitmap
	for _, n := range names {
		bm, ok := x.bitmaps[n]
		if !ok {
			return nil
		}
		if acc == nil {
			acc = bm.Clone()
			continue
		}
		acc.And(bm)
	}
	return acc.ToArray()
}
