// ABOUTME: Root heapmeter package providing version information and package documentation
// ABOUTME: Subpackages hold the layout model, strategies, guards and the traversal engine

// Package heapmeter measures the memory footprint of live Go object graphs.
// It computes shallow sizes (a single object) and deep sizes (everything
// reachable from a set of roots, each distinct object counted once) using a
// pluggable size strategy, an exclusion policy and an identity visited set.
//
// The engine lives in package meter; strategy, guard, object and layout hold
// its building blocks, graph and report turn a measurement into an
// attribution report.
package heapmeter

// Version is the semantic version of heapmeter
const Version = "0.2.0-dev"
