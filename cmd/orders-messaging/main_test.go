package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sokol111/ecommerce-orders-messaging/internal/ordering"
)

func TestParseLines(t *testing.T) {
	lines, err := parseLines([]string{"P1:2", "P2:1"})
	require.NoError(t, err)
	assert.Equal(t, []ordering.Line{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 1}}, lines)

	for _, bad := range []string{"P1", ":2", "P1:two"} {
		_, err := parseLines([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
