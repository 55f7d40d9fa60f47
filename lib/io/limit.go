package iolib

import (
	"io"

	"github.com/pkg/errors"
)

var ErrLimitExceeded = errors.New("read limit exceeded")

// StrictLimitReader creates new [StrictLimitedReader]
func StrictLimitReader(r io.Reader, n uint) io.Reader { return &StrictLimitedReader{R: r, N: n} }

// StrictLimitedReader is a uint port of [io.LimitedReader] that fails with
// [ErrLimitExceeded] instead of reporting EOF when the source holds more than N bytes.
type StrictLimitedReader struct {
	R io.Reader // underlying reader
	N uint      // max bytes remaining
}

func (l *StrictLimitedReader) Read(p []byte) (n int, err error) {
	if l.N == 0 {
		// Probe one byte to tell a clean end from an overflow.
		var probe [1]byte
		n, err := l.R.Read(probe[:])
		if n > 0 {
			return 0, ErrLimitExceeded
		}
		return 0, err
	}
	if uint(len(p)) > l.N {
		p = p[:l.N]
	}
	n, err = l.R.Read(p)
	l.N -= uint(n)
	return
}
