// Package dictionary implements the sorted, front-coded term table
// described in spec §4.2: a string section (prefix/suffix bytes per term)
// and a table section (doc_freq, pl_offset delta per term), read back in
// one pass with two cursors.
//
// The front-coding discipline mirrors the teacher's approach to encoding
// skip-list tower pointers as small stable integers instead of raw
// addresses (serialization.go, buildNodeIndexMap): there the "reference" is
// a node index, here it's a shared string prefix, but the idea of never
// storing a full-size value when a compact delta against the previous
// entry will do is the same.
package dictionary

import (
	"errors"
	"fmt"

	"github.com/infisearch/infisearch/internal/varint"
)

// TermInfo locates a term's postings record in the final index.
type TermInfo struct {
	DocFreq            uint32
	PostingsFileName   uint32
	PostingsFileOffset uint32
}

// ErrShardBoundary is the reserved doc_freq==0 marker read as a value by
// callers that iterate term-by-term without using Decode.
var ErrShardBoundary = errors.New("dictionary: shard boundary marker, not a term")

// Entry is one term as staged by a Builder before encoding.
type Entry struct {
	Term string
	Info TermInfo
}

// Builder accumulates dictionary entries in strict sorted order and
// produces the two-section byte encoding. Front-coding and the pl_offset
// delta both reset at shard boundaries, signalled by calling SealShard
// before moving on to the next shard's terms.
type Builder struct {
	stringSection []byte
	tableSection  []byte
	prevTerm      string
	prevOffset    uint32
	haveShard     bool
}

// NewBuilder creates an empty dictionary builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one term in sorted order. Terms within a shard must be
// strictly increasing; callers (the merger) are responsible for this
// invariant (spec §3 "Invariants").
func (b *Builder) Add(term string, info TermInfo) {
	prefixLen, suffix := commonPrefix(b.prevTerm, term)
	if !b.haveShard {
		prefixLen = 0
		suffix = term
	}
	b.stringSection = append(b.stringSection, byte(prefixLen), byte(len(suffix)))
	b.stringSection = append(b.stringSection, suffix...)

	b.tableSection = varint.AppendUvarint(b.tableSection, uint64(info.DocFreq))
	// pl_offset only grows within a shard (postings are appended in term
	// order), so the delta is always non-negative.
	delta := info.PostingsFileOffset - b.prevOffset
	b.tableSection = varint.AppendUvarint(b.tableSection, uint64(delta))

	b.prevTerm = term
	b.prevOffset = info.PostingsFileOffset
	b.haveShard = true
}

// SealShard writes the reserved doc_freq==0 boundary marker and resets the
// front-coding prefix and pl_offset accumulator for the next shard.
func (b *Builder) SealShard() {
	b.tableSection = varint.AppendUvarint(b.tableSection, 0)
	b.prevTerm = ""
	b.prevOffset = 0
	b.haveShard = false
}

// Bytes returns the string section and the table section as two separate
// slices, for callers that need to lay out the metadata block header
// (spec §4.4).
func (b *Builder) Bytes() (stringSection, tableSection []byte) {
	return b.stringSection, b.tableSection
}

func commonPrefix(prev, cur string) (int, string) {
	n := 0
	max := len(prev)
	if len(cur) < max {
		max = len(cur)
	}
	if max > 255 {
		max = 255
	}
	for n < max && prev[n] == cur[n] {
		n++
	}
	return n, cur[n:]
}

// Decode reconstructs term -> TermInfo for every term across every shard
// contained in the string/table sections, in one pass over both cursors.
func Decode(stringSection, tableSection []byte, shardFileFor func(shardIndex int) uint32) (map[string]TermInfo, error) {
	result := make(map[string]TermInfo)

	strOff := 0
	tblOff := 0
	var prevTerm string
	var prevOffset uint32
	shardIndex := 0

	for tblOff < len(tableSection) {
		docFreq, n := varint.Uvarint(tableSection[tblOff:])
		if n <= 0 {
			return nil, fmt.Errorf("dictionary: corrupt table section at offset %d", tblOff)
		}
		tblOff += n

		if docFreq == 0 {
			// Shard boundary: reset front-coding and offset accumulator,
			// advance to the next shard file.
			prevTerm = ""
			prevOffset = 0
			shardIndex++
			continue
		}

		delta, n2 := varint.Uvarint(tableSection[tblOff:])
		if n2 <= 0 {
			return nil, fmt.Errorf("dictionary: corrupt table section at offset %d", tblOff)
		}
		tblOff += n2
		offset := prevOffset + uint32(delta)

		if strOff+2 > len(stringSection) {
			return nil, fmt.Errorf("dictionary: corrupt string section at offset %d", strOff)
		}
		prefixLen := int(stringSection[strOff])
		suffixLen := int(stringSection[strOff+1])
		strOff += 2
		if strOff+suffixLen > len(stringSection) {
			return nil, fmt.Errorf("dictionary: corrupt string section suffix at offset %d", strOff)
		}
		suffix := string(stringSection[strOff : strOff+suffixLen])
		strOff += suffixLen

		var term string
		if prefixLen == 0 {
			term = suffix
		} else {
			term = prevTerm[:prefixLen] + suffix
		}

		result[term] = TermInfo{
			DocFreq:            uint32(docFreq),
			PostingsFileName:   shardFileFor(shardIndex),
			PostingsFileOffset: offset,
		}

		prevTerm = term
		prevOffset = offset
	}

	return result, nil
}
