//go:build (amd64 || arm64) && (darwin || linux)

package bfjit

const JITSupported = true

// NewRuntimeConfig returns NewRuntimeConfigJIT
func NewRuntimeConfig() *RuntimeConfig {
	return NewRuntimeConfigJIT()
}
