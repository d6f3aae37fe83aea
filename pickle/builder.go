package pickle

import (
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// Stream builder
// ---------------------------------------------------------------------------

// Builder provides a convenient way to construct pickle byte streams.
type Builder struct {
	stream []byte
}

// NewBuilder creates a new stream builder.
func NewBuilder() *Builder {
	return &Builder{stream: make([]byte, 0, 256)}
}

// Emit appends an opcode tag and returns its offset.
func (b *Builder) Emit(op Opcode) int {
	pos := len(b.stream)
	b.stream = append(b.stream, byte(op))
	return pos
}

// EmitByte appends a single raw byte.
func (b *Builder) EmitByte(v byte) {
	b.stream = append(b.stream, v)
}

// EmitBytes appends raw bytes.
func (b *Builder) EmitBytes(v []byte) {
	b.stream = append(b.stream, v...)
}

// EmitUint16 appends a 2-byte unsigned little-endian value.
func (b *Builder) EmitUint16(v uint16) {
	b.stream = append(b.stream, byte(v), byte(v>>8))
}

// EmitUint32 appends a 4-byte unsigned little-endian value.
func (b *Builder) EmitUint32(v uint32) {
	b.stream = append(b.stream, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// EmitInt32 appends a 4-byte signed little-endian value.
func (b *Builder) EmitInt32(v int32) {
	b.EmitUint32(uint32(v))
}

// EmitUint64 appends an 8-byte unsigned little-endian value.
func (b *Builder) EmitUint64(v uint64) {
	b.stream = binary.LittleEndian.AppendUint64(b.stream, v)
}

// EmitFloat64 appends an 8-byte big-endian IEEE 754 value.
func (b *Builder) EmitFloat64(v float64) {
	b.stream = binary.BigEndian.AppendUint64(b.stream, math.Float64bits(v))
}

// EmitLine appends text followed by a newline terminator.
func (b *Builder) EmitLine(s string) {
	b.stream = append(b.stream, s...)
	b.stream = append(b.stream, '\n')
}

// ReserveFrame reserves space for a FRAME opcode and its 8-byte length,
// returning the offset of the reservation.
func (b *Builder) ReserveFrame() int {
	pos := len(b.stream)
	b.stream = append(b.stream, make([]byte, frameHeaderLen)...)
	return pos
}

// PatchFrame fills a reservation made by ReserveFrame. The frame length
// covers every byte after the header through the current end of the stream.
func (b *Builder) PatchFrame(pos int) {
	b.stream[pos] = byte(OpFrame)
	span := uint64(len(b.stream) - pos - frameHeaderLen)
	binary.LittleEndian.PutUint64(b.stream[pos+1:pos+frameHeaderLen], span)
}

// frameHeaderLen is the size of a FRAME opcode plus its length argument.
const frameHeaderLen = 9

// Len returns the current stream length in bytes.
func (b *Builder) Len() int {
	return len(b.stream)
}

// Bytes returns the built stream.
func (b *Builder) Bytes() []byte {
	return b.stream
}
