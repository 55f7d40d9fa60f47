package iolib

import "io"

// WriteFull writes the whole buf to w, retrying short writes.
// A write that makes no progress without reporting an error fails with [io.ErrShortWrite].
func WriteFull(w io.Writer, buf []byte) (uint, error) {
	total := uint(0)
	for total < uint(len(buf)) {
		n, err := w.Write(buf[total:])
		total += uint(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
