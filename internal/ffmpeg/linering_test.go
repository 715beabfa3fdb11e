// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	_, _ = fmt.Fprintf(r, "line1\n")
	_, _ = fmt.Fprintf(r, "line2\n")
	assert.Equal(t, []string{"line1", "line2"}, r.LastN(10))

	_, _ = fmt.Fprintf(r, "line3\n")
	assert.Equal(t, []string{"line1", "line2", "line3"}, r.LastN(10))

	// Wrap
	_, _ = fmt.Fprintf(r, "line4\n")
	assert.Equal(t, []string{"line2", "line3", "line4"}, r.LastN(10))
	assert.Equal(t, []string{"line3", "line4"}, r.LastN(2))
}

func TestLineRing_MultiLineWrite(t *testing.T) {
	r := NewLineRing(5)
	_, _ = r.Write([]byte("foo\r\n\nbar\n"))
	assert.Equal(t, []string{"foo", "bar"}, r.LastN(10))
	assert.Nil(t, NewLineRing(2).LastN(3))
}
