//go:build !amd64 && !arm64

package jit

import (
	"fmt"
	"runtime"
)

// archContext is embedded in callContext in order to store architecture-specific data.
type archContext struct{}

func newCompiler(int) (compiler, error) {
	return nil, fmt.Errorf("unsupported GOARCH %s", runtime.GOARCH)
}

func jitcall(codeSegment, ctx uintptr) {
	panic("BUG: jitcall on unsupported GOARCH")
}
