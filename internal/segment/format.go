package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Segment layout, all integers big endian:
//
//	magic "SGP1"
//	repeated: keyLen uint32 | payloadLen uint64 | key | payload | crc32(key+payload)
const (
	magic            = "SGP1"
	recordHeaderSize = 4 + 8
	checksumSize     = 4

	// MaxKeyLen bounds record keys; relative paths never get near it.
	MaxKeyLen = 1 << 16

	// payloads up to this size are read into a buffer sized from the header;
	// larger ones grow as bytes actually arrive.
	preallocLimit = 1 << 20
)

var (
	// ErrBadMagic is returned when a stream does not start with the segment magic.
	ErrBadMagic = errors.New("segment: bad magic")

	// ErrChecksumMismatch is returned when a record fails its CRC32 check.
	ErrChecksumMismatch = errors.New("segment: checksum mismatch")

	// ErrKeyTooLarge is returned when a key exceeds MaxKeyLen.
	ErrKeyTooLarge = errors.New("segment: key too large")
)

// Record is a single key/payload entry inside a segment.
type Record struct {
	Key     string
	Payload []byte
}

// writeRecord frames key and payload onto w. torn reports whether some bytes
// of the record reached w before the error, leaving a partial record behind.
func writeRecord(w io.Writer, key string, payload []byte) (torn bool, err error) {
	if len(key) > MaxKeyLen {
		return false, fmt.Errorf("%w: %d bytes", ErrKeyTooLarge, len(key))
	}

	header := make([]byte, recordHeaderSize+len(key))
	binary.BigEndian.PutUint32(header[0:4], uint32(len(key)))
	binary.BigEndian.PutUint64(header[4:12], uint64(len(payload)))
	copy(header[recordHeaderSize:], key)

	crc := crc32.NewIEEE()
	crc.Write(header[recordHeaderSize:])
	crc.Write(payload)
	trailer := make([]byte, checksumSize)
	binary.BigEndian.PutUint32(trailer, crc.Sum32())

	var written int
	for _, part := range [][]byte{header, payload, trailer} {
		n, err := w.Write(part)
		written += n
		if err != nil {
			return written > 0, err
		}
	}
	return false, nil
}

// readRecord reads one record. It returns io.EOF only on a clean record boundary.
func readRecord(r io.Reader) (Record, error) {
	header := make([]byte, recordHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Record{}, err
	}
	keyLen := binary.BigEndian.Uint32(header[0:4])
	payloadLen := binary.BigEndian.Uint64(header[4:12])
	if keyLen > MaxKeyLen {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrKeyTooLarge, keyLen)
	}
	if payloadLen > uint64(math.MaxInt64) {
		return Record{}, fmt.Errorf("segment: payload length %d out of range", payloadLen)
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return Record{}, noEOF(err)
	}
	payload, err := readPayload(r, int64(payloadLen))
	if err != nil {
		return Record{}, err
	}
	trailer := make([]byte, checksumSize)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return Record{}, noEOF(err)
	}

	crc := crc32.NewIEEE()
	crc.Write(key)
	crc.Write(payload)
	if crc.Sum32() != binary.BigEndian.Uint32(trailer) {
		return Record{}, fmt.Errorf("%w: key %q", ErrChecksumMismatch, key)
	}

	return Record{Key: string(key), Payload: payload}, nil
}

// readPayload reads exactly n bytes without trusting n for the allocation,
// so a corrupt length fails with io.ErrUnexpectedEOF instead of exhausting memory.
func readPayload(r io.Reader, n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	if n <= preallocLimit {
		buf.Grow(int(n))
	}
	got, err := io.CopyN(&buf, r, n)
	if got < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// noEOF turns an EOF inside a record into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
