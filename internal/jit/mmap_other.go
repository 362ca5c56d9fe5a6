//go:build !darwin && !linux

package jit

import (
	"fmt"
	"runtime"
)

func mmapCodeSegment(*assembledCode) ([]byte, error) {
	return nil, fmt.Errorf("unsupported GOOS %s", runtime.GOOS)
}

func mmapTape(int) ([]byte, error) {
	return nil, fmt.Errorf("unsupported GOOS %s", runtime.GOOS)
}

func munmap([]byte) error {
	return nil
}
