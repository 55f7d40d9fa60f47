//go:build !unix

package tcp

import (
	"syscall"

	"github.com/pkg/errors"
)

func isRefused(err error) bool  { return errors.Is(err, syscall.ECONNREFUSED) }
func isTimedOut(err error) bool { return errors.Is(err, syscall.ETIMEDOUT) }
