package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"strconv"
)

const (
	// digestSize is the number of bytes produced per HMAC round.
	digestSize = sha256.Size
	// floatWidth is the number of digest bytes consumed per float.
	floatWidth = 4
	// floatsPerRound is how many floats one digest yields.
	floatsPerRound = digestSize / floatWidth
	// floatDivisor maps a 32-bit big-endian integer into [0, 1).
	floatDivisor = 1 << 32
)

// Stream is a lazy, restartable sequence of uniform floats in [0, 1)
// derived from HMAC-SHA256(serverSeed, "clientSeed:nonce:round").
//
// The server seed is used as the raw HMAC key (ASCII, never hex-decoded).
// A Stream is not safe for concurrent use; create one per goroutine.
type Stream struct {
	clientSeed string
	nonce      uint64
	mac        hash.Hash
	round      uint64
	pos        int
	buffer     [digestSize]byte
	msg        []byte
}

// NewStream creates a stream positioned at the first float.
func NewStream(serverSeed, clientSeed string, nonce uint64) *Stream {
	s := &Stream{
		clientSeed: clientSeed,
		nonce:      nonce,
		mac:        hmac.New(sha256.New, []byte(serverSeed)),
	}
	s.generateRound()
	return s
}

// Next returns the next float of the stream.
func (s *Stream) Next() float64 {
	if s.pos >= digestSize {
		s.round++
		s.pos = 0
		s.generateRound()
	}

	v := binary.BigEndian.Uint32(s.buffer[s.pos : s.pos+floatWidth])
	s.pos += floatWidth
	return float64(v) / floatDivisor
}

// Take fills dst with the next len(dst) floats and returns it.
func (s *Stream) Take(dst []float64) []float64 {
	for i := range dst {
		dst[i] = s.Next()
	}
	return dst
}

// Reset rewinds the stream to its first float.
func (s *Stream) Reset() {
	s.round = 0
	s.pos = 0
	s.generateRound()
}

// Position reports how many floats have been consumed so far.
func (s *Stream) Position() uint64 {
	return s.round*floatsPerRound + uint64(s.pos/floatWidth)
}

func (s *Stream) generateRound() {
	s.msg = s.msg[:0]
	s.msg = append(s.msg, s.clientSeed...)
	s.msg = append(s.msg, ':')
	s.msg = strconv.AppendUint(s.msg, s.nonce, 10)
	s.msg = append(s.msg, ':')
	s.msg = strconv.AppendUint(s.msg, s.round, 10)

	s.mac.Reset()
	s.mac.Write(s.msg)
	s.mac.Sum(s.buffer[:0])
}

// Floats generates the first count floats for the given seed triple.
func Floats(serverSeed, clientSeed string, nonce uint64, count int) []float64 {
	if count <= 0 {
		return []float64{}
	}
	return NewStream(serverSeed, clientSeed, nonce).Take(make([]float64, count))
}

// FloatsInto fills the provided slice with floats, avoiding allocation
// when dst is large enough.
func FloatsInto(dst []float64, serverSeed, clientSeed string, nonce uint64, count int) []float64 {
	if count <= 0 {
		return dst[:0]
	}
	if cap(dst) < count {
		dst = make([]float64, count)
	}
	return NewStream(serverSeed, clientSeed, nonce).Take(dst[:count])
}
