package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_FailureReportsToStderr(t *testing.T) {
	var stderr strings.Builder

	// classify without its required flags must fail loudly, not silently.
	code := run([]string{"classify"}, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error:")
	assert.Contains(t, stderr.String(), "reads")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stderr strings.Builder

	code := run([]string{"bogus"}, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error:")
}

func TestRun_Version(t *testing.T) {
	var stderr strings.Builder

	code := run([]string{"version"}, &stderr)

	assert.Equal(t, 0, code)
	assert.Empty(t, stderr.String())
}
