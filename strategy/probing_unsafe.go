// ABOUTME: Enables offset probing in builds with unsafe memory access
// ABOUTME: Counterpart of probing_purego.go

//go:build !purego

package strategy

const probingAvailable = true
