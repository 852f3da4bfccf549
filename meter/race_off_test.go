// ABOUTME: Marks test binaries built without the race detector
// ABOUTME: Counterpart of race_on_test.go

//go:build !race

package meter

const raceEnabled = false
