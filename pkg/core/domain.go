// Package core defines the storage contracts shared by every collection.
package core

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/cases"
)

// Document is the unit the storage engine persists.
// Data is the encoded record; the engine never interprets it beyond
// handing it to index functions.
type Document struct {
	Collection string
	ID         string
	Data       []byte
}

// IndexRange selects an ordered slice of a secondary index.
// From is inclusive, To is exclusive; nil bounds are open.
type IndexRange struct {
	Index   string
	From    []byte
	To      []byte
	Reverse bool
}

// keySeparator splits the index value from the record id inside an index key.
const keySeparator = 0x00

// Int64Key encodes v so that byte order matches numeric order.
func Int64Key(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// StringKey encodes s case-folded, so index order ignores case.
// 0x00 and 0x01 are escaped as 0x01 0x01 and 0x01 0x02, which keeps byte
// order and leaves keySeparator unique inside an index entry key.
func StringKey(s string) []byte {
	folded := Fold(s)
	key := make([]byte, 0, len(folded))
	for i := 0; i < len(folded); i++ {
		switch c := folded[i]; c {
		case 0x00, 0x01:
			key = append(key, 0x01, c+1)
		default:
			key = append(key, c)
		}
	}
	return key
}

// Fold returns the case-folded form of s used for case-insensitive matching.
// A Caser is not safe for concurrent use, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// IndexEntryKey joins an index value and a record id into a unique index key.
func IndexEntryKey(value []byte, id string) []byte {
	key := make([]byte, 0, len(value)+1+len(id))
	key = append(key, value...)
	key = append(key, keySeparator)
	key = append(key, id...)
	return key
}

// InRange reports whether an index key falls inside [from, to).
func InRange(key, from, to []byte) bool {
	if from != nil && bytes.Compare(key, from) < 0 {
		return false
	}
	if to != nil && bytes.Compare(key, to) >= 0 {
		return false
	}
	return true
}
