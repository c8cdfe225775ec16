package main

import (
	"errors"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func asJobFailed(err error) (*scanning.JobFailedError, bool) {
	var jobErr *scanning.JobFailedError
	ok := errors.As(err, &jobErr)
	return jobErr, ok
}
