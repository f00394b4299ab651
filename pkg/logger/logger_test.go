package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger_WritesFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("fairtix-test", &buf, "debug")

	log.Info("order created", map[string]interface{}{"order_id": "o-1", "err": errors.New("x")})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fairtix-test", entry["service"])
	assert.Equal(t, "order created", entry["message"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, "x", entry["err"])
}

func TestJSONLogger_DropsBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("svc", &buf, "warn")

	log.Info("ignored", nil)
	log.Debug("ignored", nil)
	log.Warn("kept", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"kept"`)
}

func TestWith_AddsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	log := With(NewWithWriter("svc", &buf, ""), map[string]interface{}{"request_id": "r-9"})

	log.Error("failed", nil)

	assert.Contains(t, buf.String(), `"request_id":"r-9"`)

	nop := NewNop()
	assert.Equal(t, nop, With(nop, map[string]interface{}{"ignored": true}))
}
