// ABOUTME: Disables offset probing when built with the purego tag
// ABOUTME: Selection then falls back along the configured chain

//go:build purego

package strategy

const probingAvailable = false
