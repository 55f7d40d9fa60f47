package bytesutil

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var ErrLimitExceeded = errors.New("delimiter not found within limit")

// ReadUntil reads from r until delim. The output will include delim.
// If limit is greater than zero, reading stops with [ErrLimitExceeded]
// as soon as more than limit bytes are consumed without finding delim.
// EOF before delim is reported as [io.ErrUnexpectedEOF] along with the partial bytes.
func ReadUntil(r *bufio.Reader, delim []byte, limit uint) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	last := delim[len(delim)-1]
	for {
		b, err := r.ReadSlice(last)
		buf.Write(b)

		if limit > 0 && uint(buf.Len()) > limit {
			return buf.Bytes(), ErrLimitExceeded
		}

		switch {
		case err == nil:
			if bytes.HasSuffix(buf.Bytes(), delim) {
				return buf.Bytes(), nil
			}
		case errors.Is(err, bufio.ErrBufferFull):
			// Line is longer than the reader buffer. Keep going.
		case errors.Is(err, io.EOF):
			return buf.Bytes(), io.ErrUnexpectedEOF
		default:
			return buf.Bytes(), err
		}
	}
}
