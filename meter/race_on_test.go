// ABOUTME: Marks test binaries built with the race detector
// ABOUTME: Tests that mutate graphs without synchronisation skip themselves then

//go:build race

package meter

const raceEnabled = true
