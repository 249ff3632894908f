// Package postings implements the per-term postings list codec described in
// spec §4.3: doc ids are gap-coded, and each doc carries an in-order sequence
// of field records terminated by an in-band last-field bit. A short form
// collapses {field_id, field_tf} into a single byte when there are few
// scored fields and a low term frequency; otherwise field_id and field_tf
// are written separately, the latter as a varint. Positions, when enabled,
// use a hybrid scheme: short position lists are varint gaps, long ones are
// split into fixed-size chunks and bit-packed at the minimum width the
// chunk's largest gap needs.
//
// The control-byte layout and chunk format are not spelled out bit-for-bit
// in the field configuration this package otherwise follows; both were
// cross-checked against the original indexer's postings stream reader to
// avoid guessing the bit positions.
package postings

import (
	"errors"
	"fmt"

	"github.com/infisearch/infisearch/internal/bitpack"
	"github.com/infisearch/infisearch/internal/varint"
)

const (
	lastFieldMask byte = 0x80
	shortFormMask byte = 0x40

	shortFieldIDMask byte = 0x38 // bits 3-5
	shortFieldTFMask byte = 0x07 // bits 0-2
	longFieldIDMask  byte = 0x3f // bits 0-5

	// ChunkSize is the number of positions packed per bit-width chunk.
	ChunkSize = 4
	// MinChunkSize is the field_tf threshold at and above which positions
	// switch from varint gaps to chunked bit-packing.
	MinChunkSize = 4

	// chunkLenBits is the fixed width of the per-chunk min_bits header.
	chunkLenBits = 5

	maxShortFieldID = 7
	maxShortFieldTF = 7
)

// ErrCorrupt indicates a postings byte stream ended or decoded inconsistently.
var ErrCorrupt = errors.New("postings: corrupt stream")

// FieldRecord is one scored field's contribution to a (term, doc) posting.
// Positions is nil unless the index was built with positions enabled.
type FieldRecord struct {
	FieldID   uint8
	FieldTF   uint32
	Positions []uint32
}

// DocRecord is one document's postings for a term: strictly increasing doc
// ids across a stream, field records ordered by FieldID ascending.
type DocRecord struct {
	DocID  uint32
	Fields []FieldRecord
}

// Encoder serializes a term's postings, one doc at a time, in increasing
// doc id order.
type Encoder struct {
	buf             []byte
	prevDocID       uint32
	haveDoc         bool
	numScoredFields int
	withPositions   bool
}

// NewEncoder creates an encoder for a term whose index has numScoredFields
// scored fields; withPositions controls whether position lists are emitted.
func NewEncoder(numScoredFields int, withPositions bool) *Encoder {
	return &Encoder{numScoredFields: numScoredFields, withPositions: withPositions}
}

// WriteDoc appends one document's field records. docID must be strictly
// greater than the doc id of the previous call (spec §3 invariant); fields
// must be sorted by FieldID ascending and must not contain a zero-tf entry
// (spec §4.3: "a field record with field_tf = 0 is not emitted").
func (e *Encoder) WriteDoc(docID uint32, fields []FieldRecord) error {
	if e.haveDoc && docID <= e.prevDocID {
		return fmt.Errorf("postings: doc id %d does not strictly increase past %d", docID, e.prevDocID)
	}
	gap := docID
	if e.haveDoc {
		gap = docID - e.prevDocID
	}
	e.buf = varint.AppendUvarint(e.buf, uint64(gap))

	for i, f := range fields {
		if f.FieldTF == 0 {
			return fmt.Errorf("postings: field %d has field_tf = 0", f.FieldID)
		}
		isLast := i == len(fields)-1
		e.writeField(f, isLast)
	}

	e.prevDocID = docID
	e.haveDoc = true
	return nil
}

func (e *Encoder) writeField(f FieldRecord, isLast bool) {
	if e.numScoredFields <= 8 && f.FieldTF <= maxShortFieldTF && f.FieldID <= maxShortFieldID {
		b := shortFormMask | (f.FieldID << 3) | byte(f.FieldTF)
		if isLast {
			b |= lastFieldMask
		}
		e.buf = append(e.buf, b)
	} else {
		b := f.FieldID
		if isLast {
			b |= lastFieldMask
		}
		e.buf = append(e.buf, b)
		e.buf = varint.AppendUvarint(e.buf, uint64(f.FieldTF))
	}

	if e.withPositions {
		e.writePositions(f.Positions)
	}
}

func (e *Encoder) writePositions(positions []uint32) {
	tf := len(positions)
	if tf < MinChunkSize {
		var prev uint32
		for _, p := range positions {
			e.buf = varint.AppendUvarint(e.buf, uint64(p-prev))
			prev = p
		}
		return
	}

	w := bitpack.NewWriter()
	var prev uint32
	for start := 0; start < tf; start += ChunkSize {
		end := start + ChunkSize
		if end > tf {
			end = tf
		}
		chunkPrev := prev
		var chunkMax uint32
		for _, p := range positions[start:end] {
			gap := p - chunkPrev
			if gap > chunkMax {
				chunkMax = gap
			}
			chunkPrev = p
		}
		minBits := bitpack.MinBits(chunkMax)
		w.WriteBits(uint32(minBits), chunkLenBits)
		for _, p := range positions[start:end] {
			gap := p - prev
			w.WriteBits(gap, minBits)
			prev = p
		}
	}
	e.buf = append(e.buf, w.Flush()...)
}

// Bytes returns the encoded postings stream built so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads back a postings stream produced by Encoder, one doc at a
// time via Next.
type Decoder struct {
	data            []byte
	off             int
	prevDocID       uint32
	haveDoc         bool
	numScoredFields int
	withPositions   bool
}

// NewDecoder wraps a postings byte stream for sequential doc-at-a-time reads.
func NewDecoder(data []byte, numScoredFields int, withPositions bool) *Decoder {
	return &Decoder{data: data, numScoredFields: numScoredFields, withPositions: withPositions}
}

// Next returns the next doc record, or ok == false once the stream is
// exhausted.
func (d *Decoder) Next() (rec DocRecord, ok bool, err error) {
	if d.off >= len(d.data) {
		return DocRecord{}, false, nil
	}

	gap, n := varint.Uvarint(d.data[d.off:])
	if n <= 0 {
		return DocRecord{}, false, fmt.Errorf("%w: doc gap at offset %d", ErrCorrupt, d.off)
	}
	d.off += n

	docID := gap
	if d.haveDoc {
		docID = uint64(d.prevDocID) + gap
	}

	var fields []FieldRecord
	for {
		if d.off >= len(d.data) {
			return DocRecord{}, false, fmt.Errorf("%w: truncated field record at offset %d", ErrCorrupt, d.off)
		}
		b := d.data[d.off]
		d.off++

		isLast := b&lastFieldMask != 0
		var fieldID uint8
		var fieldTF uint32

		if b&shortFormMask != 0 {
			fieldID = (b & shortFieldIDMask) >> 3
			fieldTF = uint32(b & shortFieldTFMask)
		} else {
			fieldID = b & longFieldIDMask
			tf, n := varint.Uvarint(d.data[d.off:])
			if n <= 0 {
				return DocRecord{}, false, fmt.Errorf("%w: field_tf at offset %d", ErrCorrupt, d.off)
			}
			d.off += n
			fieldTF = uint32(tf)
		}

		var positions []uint32
		if d.withPositions {
			positions, err = d.readPositions(fieldTF)
			if err != nil {
				return DocRecord{}, false, err
			}
		}

		fields = append(fields, FieldRecord{FieldID: fieldID, FieldTF: fieldTF, Positions: positions})

		if isLast {
			break
		}
	}

	d.prevDocID = uint32(docID)
	d.haveDoc = true
	return DocRecord{DocID: uint32(docID), Fields: fields}, true, nil
}

func (d *Decoder) readPositions(fieldTF uint32) ([]uint32, error) {
	if fieldTF == 0 {
		return nil, nil
	}
	positions := make([]uint32, 0, fieldTF)

	if fieldTF < MinChunkSize {
		var prev uint32
		for i := uint32(0); i < fieldTF; i++ {
			gap, n := varint.Uvarint(d.data[d.off:])
			if n <= 0 {
				return nil, fmt.Errorf("%w: position gap at offset %d", ErrCorrupt, d.off)
			}
			d.off += n
			prev += uint32(gap)
			positions = append(positions, prev)
		}
		return positions, nil
	}

	r := bitpack.NewReader(d.data[d.off:])
	numChunks := fieldTF / ChunkSize
	if fieldTF%ChunkSize != 0 {
		numChunks++
	}
	var prev uint32
	var read uint32
	for c := uint32(0); c < numChunks; c++ {
		minBits := int(r.ReadBits(chunkLenBits))
		for i := 0; i < ChunkSize; i++ {
			if read == fieldTF {
				break
			}
			gap := r.ReadBits(minBits)
			prev += gap
			positions = append(positions, prev)
			read++
		}
	}
	d.off += r.BytesConsumed()
	return positions, nil
}
