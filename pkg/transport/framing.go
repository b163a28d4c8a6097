package transport

import (
	"bytes"
	"errors"
	"fmt"
)

// RecordSeparator terminates every record on the wire.
const RecordSeparator byte = 0x1E

// DefaultMaxMessageSize bounds a single record and the pending buffer (1 MB).
const DefaultMaxMessageSize = 1 << 20

// ErrMessageTooLarge indicates a record exceeding the configured maximum.
var ErrMessageTooLarge = errors.New("message too large")

// Framer splits an incoming byte stream into records.
// Bytes after the last separator are kept until the next Feed.
// A Framer is not safe for concurrent use.
type Framer struct {
	buf     []byte
	maxSize int
}

// NewFramer returns a Framer limited to maxSize bytes per record.
// A maxSize of zero selects DefaultMaxMessageSize.
func NewFramer(maxSize int) *Framer {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{maxSize: maxSize}
}

// Feed appends data and returns every complete record, without separators.
// Empty records are skipped.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	f.buf = append(f.buf, data...)

	var records [][]byte
	for {
		i := bytes.IndexByte(f.buf, RecordSeparator)
		if i < 0 {
			break
		}
		if i > f.maxSize {
			f.buf = nil
			return records, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, i, f.maxSize)
		}
		if i > 0 {
			rec := make([]byte, i)
			copy(rec, f.buf[:i])
			records = append(records, rec)
		}
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) > f.maxSize {
		n := len(f.buf)
		f.buf = nil
		return records, fmt.Errorf("%w: %d pending bytes > %d", ErrMessageTooLarge, n, f.maxSize)
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return records, nil
}

// Pending returns the number of buffered bytes of an incomplete record.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// AppendRecord appends payload and a record separator to dst.
func AppendRecord(dst, payload []byte) []byte {
	dst = append(dst, payload...)
	return append(dst, RecordSeparator)
}
