//go:build !bfjit_debug

package buildoptions

// IsDebugMode true if the binary is built with the bfjit_debug tag. Engines print the bfir
// listing and the assembled machine code under `if buildoptions.IsDebugMode { ... }` blocks,
// which are optimized out of regular builds.
const IsDebugMode = false
