//go:build unix

package tcp

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func isRefused(err error) bool  { return errors.Is(err, unix.ECONNREFUSED) }
func isTimedOut(err error) bool { return errors.Is(err, unix.ETIMEDOUT) }
