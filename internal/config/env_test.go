// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("CAMIO_TEST_STRING", "value")
	t.Setenv("CAMIO_TEST_EMPTY", "")
	t.Setenv("CAMIO_TEST_INT", " 42 ")
	t.Setenv("CAMIO_TEST_BAD_INT", "forty")
	t.Setenv("CAMIO_TEST_DUR", "1500ms")
	t.Setenv("CAMIO_TEST_BAD_DUR", "soon")
	t.Setenv("CAMIO_TEST_BOOL", "YES")
	t.Setenv("CAMIO_TEST_BAD_BOOL", "maybe")

	assert.Equal(t, "value", ParseString("CAMIO_TEST_STRING", "d"))
	assert.Equal(t, "d", ParseString("CAMIO_TEST_EMPTY", "d"))
	assert.Equal(t, "d", ParseString("CAMIO_TEST_UNSET", "d"))

	assert.Equal(t, 42, ParseInt("CAMIO_TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("CAMIO_TEST_BAD_INT", 1))

	assert.Equal(t, 1500*time.Millisecond, ParseDuration("CAMIO_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, ParseDuration("CAMIO_TEST_BAD_DUR", time.Second))

	assert.True(t, ParseBool("CAMIO_TEST_BOOL", false))
	assert.False(t, ParseBool("CAMIO_TEST_BAD_BOOL", false))
	assert.True(t, ParseBool("CAMIO_TEST_UNSET", true))
}
