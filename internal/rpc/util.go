package rpc

import (
	"errors"
	"strconv"
)

var errScanInProgress = errors.New("a scan is already in progress")

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
