package bfjit

import (
	"github.com/tetratelabs/bfjit/internal/bfir"
	"github.com/tetratelabs/bfjit/internal/interpreter"
	"github.com/tetratelabs/bfjit/internal/jit"
)

// RuntimeConfig controls runtime behavior, with the default implementation as NewRuntimeConfig
type RuntimeConfig struct {
	newEngine func(tapeSize int) bfir.Engine
	tapeSize  int
}

// engineLessConfig helps avoid copy/pasting the wrong defaults.
var engineLessConfig = &RuntimeConfig{
	tapeSize: bfir.DefaultTapeSize,
}

// clone ensures all fields are coped even if nil.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	return &RuntimeConfig{
		newEngine: c.newEngine,
		tapeSize:  c.tapeSize,
	}
}

// NewRuntimeConfigJIT compiles programs into runtime.GOARCH-specific assembly for optimal performance.
//
// Note: Programs fail to compile when runtime.GOOS or runtime.GOARCH does not support JIT. Use NewRuntimeConfig to
// safely detect and fallback to NewRuntimeConfigInterpreter if needed.
func NewRuntimeConfigJIT() *RuntimeConfig {
	ret := engineLessConfig.clone()
	ret.newEngine = jit.NewEngine
	return ret
}

// NewRuntimeConfigInterpreter interprets programs instead of compiling them into assembly.
func NewRuntimeConfigInterpreter() *RuntimeConfig {
	ret := engineLessConfig.clone()
	ret.newEngine = interpreter.NewEngine
	return ret
}

// WithTapeSize sets the number of cells on the tape. Defaults to 65536.
//
// A program which moves the state pointer off either end of the tape fails with ErrTapeOutOfBounds.
// The size must be positive, or CompileProgram fails.
func (c *RuntimeConfig) WithTapeSize(tapeSize int) *RuntimeConfig {
	ret := c.clone()
	ret.tapeSize = tapeSize
	return ret
}
