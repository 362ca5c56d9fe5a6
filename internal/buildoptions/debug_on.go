//go:build bfjit_debug

package buildoptions

const IsDebugMode = true
