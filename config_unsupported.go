//go:build !((amd64 || arm64) && (darwin || linux))

package bfjit

const JITSupported = false

// NewRuntimeConfig returns NewRuntimeConfigInterpreter
func NewRuntimeConfig() *RuntimeConfig {
	return NewRuntimeConfigInterpreter()
}
