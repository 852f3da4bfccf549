// ABOUTME: Tests for the root heapmeter package
// ABOUTME: Verifies the version constant follows semantic versioning

package heapmeter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prateek/heapmeter"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, heapmeter.Version)
	assert.True(t, strings.HasPrefix(heapmeter.Version, "0."), "version %q should start with 0.", heapmeter.Version)
}
