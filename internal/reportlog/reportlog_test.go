package reportlog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-agent/internal/types"
)

func TestAppendWritesOneLinePerReport(t *testing.T) {
	j := New(t.TempDir())
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	require.NoError(t, j.Append(types.Report{ID: "r1", Symbol: "AAPL", GeneratedAt: now, Body: "Report date: 2026-03-10\nBUY"}))
	require.NoError(t, j.Append(types.Report{ID: "r2", Symbol: "TSLA", GeneratedAt: now, Body: "no marker"}))
	require.NoError(t, j.Close())

	f, err := os.Open(j.path(now))
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "BUY", entries[0].Stance)
	assert.Equal(t, "2026-03-10", entries[0].AsOf)
	assert.Equal(t, "2026-03-10 09:30:00", entries[0].Time)
	assert.Empty(t, entries[1].Stance)
}

func TestCompressOlder(t *testing.T) {
	j := New(t.TempDir())
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	old := now.AddDate(0, 0, -10)
	require.NoError(t, os.MkdirAll(filepath.Join(j.dir, "reports"), 0o755))
	oldPath := j.path(old)
	require.NoError(t, os.WriteFile(oldPath, []byte("{\"id\":\"old\"}\n"), 0o644))
	require.NoError(t, os.Chtimes(oldPath, old, old))
	require.NoError(t, j.Append(types.Report{ID: "new", Symbol: "AAPL", GeneratedAt: now}))

	require.NoError(t, j.CompressOlder(7))

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(j.path(now))
	assert.NoError(t, err, "recent files stay uncompressed")

	f, err := os.Open(oldPath + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":\"old\"}\n", string(b))
}

func TestCompressOlderDisabled(t *testing.T) {
	assert.NoError(t, New(t.TempDir()).CompressOlder(0))
}
