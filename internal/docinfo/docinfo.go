// Package docinfo implements the metadata block described in spec §4.4:
// per-document field lengths, bit-packed enum field values, delta-varint i64
// field values, and the roaring invalidation bitmap that marks deleted doc
// ids. The little-endian header layout follows the teacher's own
// serialization convention (serialization.go, binary.Write with
// binary.LittleEndian throughout).
package docinfo

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"

	"github.com/infisearch/infisearch/internal/bitpack"
	"github.com/infisearch/infisearch/internal/varint"
)

// Block holds the decoded contents of a metadata block, indexed by doc id
// (including deleted ids, up to DocIDCounter).
type Block struct {
	NumDocs           uint32
	DocIDCounter      uint32
	AverageFieldLen   []float64 // one per scored field
	FieldLengthsSpan  uint32
	FieldLengths      [][]uint32 // [docID][fieldIdx]
	BitsPerEnumField  []uint8
	EnumValues        [][]uint32 // [docID][enumFieldIdx]
	I64Mins           []int64
	I64Values         [][]int64 // [docID][i64FieldIdx]
}

// DecodeInvalidation reads the invalidation bitmap section (the bytes
// between invalidation_offset and docinfo_offset in the metadata file).
func DecodeInvalidation(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if _, err := bm.FromBuffer(data); err != nil {
		return nil, fmt.Errorf("docinfo: corrupt invalidation bitmap: %w", err)
	}
	return bm, nil
}

// ErrI64OutOfRange is returned when an i64 field value encoded for a
// document falls below that field's declared minimum: the delta would be
// negative and cannot be represented as an unsigned varint (spec §9 open
// question: i64 fields are validated at encode time rather than silently
// wrapped).
type ErrI64OutOfRange struct {
	FieldIdx int
	Value    int64
	Min      int64
}

func (e *ErrI64OutOfRange) Error() string {
	return fmt.Sprintf("docinfo: i64 field %d value %d is below declared minimum %d", e.FieldIdx, e.Value, e.Min)
}

// Builder accumulates per-document metadata across the whole index,
// including deleted (invalidated) docs, up to a final Encode call.
type Builder struct {
	numScoredFields int
	numEnumFields   int
	numI64Fields    int
	bitsPerEnum     []uint8
	i64Mins         []int64

	fieldLengths [][]uint32
	enumValues   [][]uint32
	i64Values    [][]int64
	invalidation *roaring.Bitmap
}

// NewBuilder creates a builder for an index with the given field field
// counts. bitsPerEnum and i64Mins must have length numEnumFields and
// numI64Fields respectively.
func NewBuilder(numScoredFields, numEnumFields, numI64Fields int, bitsPerEnum []uint8, i64Mins []int64) *Builder {
	return &Builder{
		numScoredFields: numScoredFields,
		numEnumFields:   numEnumFields,
		numI64Fields:    numI64Fields,
		bitsPerEnum:     bitsPerEnum,
		i64Mins:         i64Mins,
		invalidation:    roaring.New(),
	}
}

// AddDoc records one document's field lengths, enum values, and i64 values,
// assigning it the next sequential doc id. Returns the assigned doc id.
func (b *Builder) AddDoc(fieldLengths []uint32, enumValues []uint32, i64Values []int64) (uint32, error) {
	for i, v := range i64Values {
		if v < b.i64Mins[i] {
			return 0, &ErrI64OutOfRange{FieldIdx: i, Value: v, Min: b.i64Mins[i]}
		}
	}
	docID := uint32(len(b.fieldLengths))
	b.fieldLengths = append(b.fieldLengths, fieldLengths)
	b.enumValues = append(b.enumValues, enumValues)
	b.i64Values = append(b.i64Values, i64Values)
	return docID, nil
}

// Invalidate marks docID as deleted; it is still written to the metadata
// block (so offsets stay stable) but excluded from NumDocs and from
// average-field-length computation.
func (b *Builder) Invalidate(docID uint32) {
	b.invalidation.Add(docID)
}

// Encode serializes the doc-info block only. It writes no header offsets;
// a caller that places dictionary or invalidation sections ahead of these
// bytes lays out that header itself.
func (b *Builder) Encode() []byte {
	docIDCounter := uint32(len(b.fieldLengths))
	numDocs := docIDCounter - uint32(b.invalidation.GetCardinality())

	avgLen := make([]float64, b.numScoredFields)
	if numDocs > 0 {
		sums := make([]float64, b.numScoredFields)
		for doc, lengths := range b.fieldLengths {
			if b.invalidation.Contains(uint32(doc)) {
				continue
			}
			for i, l := range lengths {
				sums[i] += float64(l)
			}
		}
		for i := range avgLen {
			avgLen[i] = sums[i] / float64(numDocs)
		}
	}

	buf := make([]byte, 0, 256)
	buf = appendU32(buf, numDocs)
	buf = appendU32(buf, docIDCounter)
	for _, v := range avgLen {
		buf = appendF64(buf, v)
	}

	var lengthBytes []byte
	for _, lengths := range b.fieldLengths {
		for _, l := range lengths {
			lengthBytes = varint.AppendUvarint(lengthBytes, uint64(l))
		}
	}
	buf = appendU32(buf, uint32(len(lengthBytes)))
	buf = append(buf, lengthBytes...)

	buf = appendU32(buf, uint32(b.numEnumFields))
	buf = append(buf, b.bitsPerEnum...)
	w := bitpack.NewWriter()
	for _, values := range b.enumValues {
		for i, v := range values {
			w.WriteBits(v, int(b.bitsPerEnum[i]))
		}
	}
	buf = append(buf, w.Flush()...)

	buf = appendU32(buf, uint32(b.numI64Fields))
	for _, m := range b.i64Mins {
		buf = appendU64(buf, uint64(m))
	}
	for _, values := range b.i64Values {
		for i, v := range values {
			delta := varint.ZigZagMinDelta(v, b.i64Mins[i])
			buf = varint.AppendUvarint(buf, delta)
		}
	}

	return buf
}

// EncodeInvalidation serializes the roaring bitmap of deleted doc ids, to be
// appended directly after the dictionary table section (spec §4.4 layout).
func (b *Builder) EncodeInvalidation() ([]byte, error) {
	return b.invalidation.ToBytes()
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendF64(buf []byte, v float64) []byte {
	return appendU64(buf, math.Float64bits(v))
}

// Decode parses a doc-info block (the portion of the metadata file starting
// at docinfo_offset, per spec §4.4) back into a Block.
func Decode(data []byte, numScoredFields, numEnumFields, numI64Fields int) (*Block, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("docinfo: truncated header")
	}
	off := 0
	numDocs := binary.LittleEndian.Uint32(data[off:])
	off += 4
	docIDCounter := binary.LittleEndian.Uint32(data[off:])
	off += 4

	avgLen := make([]float64, numScoredFields)
	for i := range avgLen {
		if off+8 > len(data) {
			return nil, fmt.Errorf("docinfo: truncated average_field_length")
		}
		avgLen[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}

	if off+4 > len(data) {
		return nil, fmt.Errorf("docinfo: truncated field_lengths_span")
	}
	span := binary.LittleEndian.Uint32(data[off:])
	off += 4
	lengthsEnd := off + int(span)
	if lengthsEnd > len(data) {
		return nil, fmt.Errorf("docinfo: field lengths run past end of block")
	}
	fieldLengths := make([][]uint32, docIDCounter)
	cursor := off
	for doc := uint32(0); doc < docIDCounter; doc++ {
		lengths := make([]uint32, numScoredFields)
		for i := range lengths {
			v, n := varint.Uvarint(data[cursor:lengthsEnd])
			if n <= 0 {
				return nil, fmt.Errorf("docinfo: corrupt field length for doc %d", doc)
			}
			lengths[i] = uint32(v)
			cursor += n
		}
		fieldLengths[doc] = lengths
	}
	off = lengthsEnd

	if off+4 > len(data) {
		return nil, fmt.Errorf("docinfo: truncated num_enum_fields")
	}
	gotNumEnum := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if gotNumEnum != numEnumFields {
		return nil, fmt.Errorf("docinfo: num_enum_fields mismatch: got %d, want %d", gotNumEnum, numEnumFields)
	}
	if off+numEnumFields > len(data) {
		return nil, fmt.Errorf("docinfo: truncated bits_per_enum_field")
	}
	bitsPerEnum := make([]uint8, numEnumFields)
	copy(bitsPerEnum, data[off:off+numEnumFields])
	off += numEnumFields

	enumValues := make([][]uint32, docIDCounter)
	r := bitpack.NewReader(data[off:])
	for doc := uint32(0); doc < docIDCounter; doc++ {
		values := make([]uint32, numEnumFields)
		for i := range values {
			values[i] = r.ReadBits(int(bitsPerEnum[i]))
		}
		enumValues[doc] = values
	}
	off += r.BytesConsumed()

	if off+4 > len(data) {
		return nil, fmt.Errorf("docinfo: truncated num_i64_fields")
	}
	gotNumI64 := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if gotNumI64 != numI64Fields {
		return nil, fmt.Errorf("docinfo: num_i64_fields mismatch: got %d, want %d", gotNumI64, numI64Fields)
	}
	i64Mins := make([]int64, numI64Fields)
	for i := range i64Mins {
		if off+8 > len(data) {
			return nil, fmt.Errorf("docinfo: truncated per_field_minimum")
		}
		i64Mins[i] = int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}

	i64Values := make([][]int64, docIDCounter)
	for doc := uint32(0); doc < docIDCounter; doc++ {
		values := make([]int64, numI64Fields)
		for i := range values {
			delta, n := varint.Uvarint(data[off:])
			if n <= 0 {
				return nil, fmt.Errorf("docinfo: corrupt i64 value for doc %d field %d", doc, i)
			}
			off += n
			values[i] = varint.FromMinDelta(delta, i64Mins[i])
		}
		i64Values[doc] = values
	}

	return &Block{
		NumDocs:          numDocs,
		DocIDCounter:     docIDCounter,
		AverageFieldLen:  avgLen,
		FieldLengthsSpan: span,
		FieldLengths:     fieldLengths,
		BitsPerEnumField: bitsPerEnum,
		EnumValues:       enumValues,
		I64Mins:          i64Mins,
		I64Values:        i64Values,
	}, nil
}
