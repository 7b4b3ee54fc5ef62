// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(slog.LevelInfo)
	l := NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false))

	l.Debug("below threshold")
	assert.Zero(t, buf.Len())

	l.Info("indexed block", "number", 42)
	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "indexed block")
	assert.Contains(t, out, "number=42")
}

func TestTerminalHandlerContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NewTerminalHandler(&buf, false)).With("pkg", "indexer")

	l.Warn("stale checkpoint", "height", 7)
	out := buf.String()
	assert.Contains(t, out, "pkg=indexer")
	assert.Contains(t, out, "height=7")
}

func TestLogfmtHandlerOddArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogfmtHandler(&buf))

	l.Info("msg", "key") // odd number of attrs gets normalized
	out := buf.String()
	assert.Contains(t, out, errorKey)
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(JSONHandler(&buf))

	l.Error("cli call failed", "attempt", 3)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"lvl":"eror"`)
	assert.Contains(t, out, `"attempt":3`)
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelCrit, FromLegacyLevel(0))
	assert.Equal(t, slog.LevelInfo, FromLegacyLevel(3))
	assert.Equal(t, LevelTrace, FromLegacyLevel(5))
	assert.Equal(t, LevelTrace, FromLegacyLevel(9))
}

func TestDiscardHandler(t *testing.T) {
	l := NewLogger(DiscardHandler())
	assert.False(t, l.Enabled(nil, slog.LevelError))
	l.Info("dropped")
}
