package iolib

import (
	"bytes"
	"io"
)

// Recorder keeps a copy of every byte read through it.
type Recorder struct {
	r   io.Reader
	buf bytes.Buffer
}

func NewRecorder(r io.Reader) *Recorder {
	return &Recorder{r: r}
}

func (rec *Recorder) Read(p []byte) (n int, err error) {
	n, err = rec.r.Read(p)
	rec.buf.Write(p[:n])
	return n, err
}

// Bytes returns a copy of the bytes read so far.
func (rec *Recorder) Bytes() []byte { return bytes.Clone(rec.buf.Bytes()) }

func (rec *Recorder) Len() int { return rec.buf.Len() }
