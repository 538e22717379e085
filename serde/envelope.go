package serde

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadEnvelope is wrapped by envelope parse failures: input too short,
// wrong magic byte, or an undecodable message-index list.
var ErrBadEnvelope = errors.New("bad message envelope")

const (
	// magicByte introduces every enveloped message.
	magicByte = 0x00

	// envelopeHeaderLen is the magic byte plus the big-endian schema id.
	envelopeHeaderLen = 5

	// maxMessageIndexes bounds the message-index list. Indexes address
	// lexical nesting of message declarations, so real lists stay in
	// single digits; anything near the bound is a corrupt envelope.
	maxMessageIndexes = 128
)

// Envelope is a decoded protobuf message envelope. Indexes selects the
// message declaration within the schema: the first index picks a top-level
// message, each subsequent index a message nested inside the previous one.
// Payload aliases the input bytes.
type Envelope struct {
	SchemaID int
	Indexes  []int
	Payload  []byte
}

// ParseEnvelope splits enveloped data into the schema id and the payload.
// This is the framing shared by every schema format: the magic byte 0x00
// followed by the schema id as a big-endian 32-bit integer. The returned
// payload aliases data.
func ParseEnvelope(data []byte) (int, []byte, error) {
	if len(data) < envelopeHeaderLen {
		return 0, nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrBadEnvelope, len(data), envelopeHeaderLen)
	}
	if data[0] != magicByte {
		return 0, nil, fmt.Errorf("%w: unknown magic byte %#x", ErrBadEnvelope, data[0])
	}
	return int(binary.BigEndian.Uint32(data[1:envelopeHeaderLen])), data[envelopeHeaderLen:], nil
}

// ParseProtobufEnvelope parses the protobuf flavor of the envelope, which
// inserts a message-index list between the schema id and the payload: a
// zig-zag varint count followed by that many zig-zag varint indexes. A
// count of zero is the compact encoding of the common case, the list [0],
// so Indexes is never empty.
func ParseProtobufEnvelope(data []byte) (*Envelope, error) {
	id, rest, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	r := indexReader{buf: rest}
	count, err := r.decodeZigZag()
	if err != nil {
		return nil, fmt.Errorf("%w: reading message index count: %v", ErrBadEnvelope, err)
	}

	var indexes []int
	switch {
	case count == 0:
		indexes = []int{0}
	case count < 0 || count > maxMessageIndexes:
		return nil, fmt.Errorf("%w: message index count %d out of range", ErrBadEnvelope, count)
	default:
		indexes = make([]int, count)
		for i := range indexes {
			v, err := r.decodeZigZag()
			if err != nil {
				return nil, fmt.Errorf("%w: reading message index %d: %v", ErrBadEnvelope, i, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("%w: negative message index %d", ErrBadEnvelope, v)
			}
			indexes[i] = int(v)
		}
	}

	return &Envelope{SchemaID: id, Indexes: indexes, Payload: r.rest()}, nil
}

// EncodeEnvelope frames payload with the magic byte and schema id.
func EncodeEnvelope(id int, payload []byte) []byte {
	data := make([]byte, envelopeHeaderLen, envelopeHeaderLen+len(payload))
	data[0] = magicByte
	binary.BigEndian.PutUint32(data[1:envelopeHeaderLen], uint32(id))
	return append(data, payload...)
}

// EncodeProtobufEnvelope frames payload with the magic byte, schema id, and
// message-index list. A nil or [0] index list is written in its compact
// single-byte form.
func EncodeProtobufEnvelope(id int, indexes []int, payload []byte) ([]byte, error) {
	if len(indexes) > maxMessageIndexes {
		return nil, fmt.Errorf("%w: message index count %d out of range", ErrBadEnvelope, len(indexes))
	}

	data := make([]byte, envelopeHeaderLen, envelopeHeaderLen+1+len(payload))
	data[0] = magicByte
	binary.BigEndian.PutUint32(data[1:envelopeHeaderLen], uint32(id))

	if isDefaultIndexes(indexes) {
		data = append(data, 0)
	} else {
		data = appendZigZag(data, int64(len(indexes)))
		for _, index := range indexes {
			if index < 0 {
				return nil, fmt.Errorf("%w: negative message index %d", ErrBadEnvelope, index)
			}
			data = appendZigZag(data, int64(index))
		}
	}
	return append(data, payload...), nil
}

// isDefaultIndexes reports whether indexes selects the first top-level
// message, the case the envelope encodes as a single zero byte.
func isDefaultIndexes(indexes []int) bool {
	return len(indexes) == 0 || (len(indexes) == 1 && indexes[0] == 0)
}

var errVarintOverflow = errors.New("varint overflow")

// indexReader reads the varint-encoded message-index list that follows the
// schema id.
type indexReader struct {
	buf   []byte
	index int
}

// rest returns the bytes remaining after the index list, the message
// payload.
func (r *indexReader) rest() []byte { return r.buf[r.index:] }

func (r *indexReader) decodeVarint() (x uint64, err error) {
	i := r.index
	l := len(r.buf)

	for shift := uint(0); shift < 64; shift += 7 {
		if i >= l {
			err = io.ErrUnexpectedEOF
			return
		}
		b := r.buf[i]
		i++
		x |= (uint64(b) & 0x7F) << shift
		if b < 0x80 {
			r.index = i
			return
		}
	}

	// The number is too large to represent in a 64-bit value.
	err = errVarintOverflow
	return
}

func (r *indexReader) decodeZigZag() (int64, error) {
	v, err := r.decodeVarint()
	if err != nil {
		return 0, err
	}
	return decodeZigZag64(v), nil
}

// decodeZigZag64 decodes a signed 64-bit integer from the given zig-zag
// encoded value.
func decodeZigZag64(v uint64) int64 {
	return int64((v >> 1) ^ uint64((int64(v&1)<<63)>>63))
}

// encodeZigZag64 does zig-zag encoding to convert the given signed 64-bit
// integer into a form that can be expressed efficiently as a varint, even
// for negative values.
func encodeZigZag64(v int64) uint64 {
	return (uint64(v) << 1) ^ uint64(v>>63)
}

func appendZigZag(dst []byte, v int64) []byte {
	x := encodeZigZag64(v)
	for x >= 1<<7 {
		dst = append(dst, uint8(x&0x7f|0x80))
		x >>= 7
	}
	return append(dst, uint8(x))
}
