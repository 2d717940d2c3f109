package segment

import (
	"bufio"
	"fmt"
	"io"
)

// Reader iterates over the records of one segment.
type Reader struct {
	r   *bufio.Reader
	rec Record
	err error
}

// NewReader checks the segment magic and returns a Reader positioned at the first record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(head) != magic {
		return nil, fmt.Errorf("%w: got %q", ErrBadMagic, head)
	}
	return &Reader{r: br}, nil
}

// Next advances to the next record
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	rec, err := readRecord(r.r)
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		r.rec = Record{}
		return false
	}
	r.rec = rec
	return true
}

// Record returns the current record
func (r *Reader) Record() Record {
	return r.rec
}

// Err returns the first error other than a clean end of segment
func (r *Reader) Err() error {
	return r.err
}

// ReadAll returns every record of the segment in r.
func ReadAll(r io.Reader) ([]Record, error) {
	sr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	var out []Record
	for sr.Next() {
		out = append(out, sr.Record())
	}
	return out, sr.Err()
}
