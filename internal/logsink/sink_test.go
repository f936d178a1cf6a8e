package logsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBatchCreatesOneFilePerSource(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir, []string{"mobile-android", "mobile-ios"})
	require.NoError(t, err)
	defer sink.Close()

	err = sink.WriteBatch([]Entry{
		{Source: "mobile-android", Level: "INFO", Message: "started", Timestamp: time.Now()},
		{Source: "mobile-ios", Level: "WARN", Message: "low battery", Timestamp: time.Now()},
	})
	require.NoError(t, err)

	androidData, err := os.ReadFile(filepath.Join(dir, "mobile-android.log"))
	require.NoError(t, err)
	assert.Contains(t, string(androidData), "started")

	iosData, err := os.ReadFile(filepath.Join(dir, "mobile-ios.log"))
	require.NoError(t, err)
	assert.Contains(t, string(iosData), "low battery")
}

func TestWriteBatchDiscardsUnknownSource(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir, []string{"mobile-android"})
	require.NoError(t, err)
	defer sink.Close()

	err = sink.WriteBatch([]Entry{
		{Source: "unknown-client", Level: "INFO", Message: "should be dropped", Timestamp: time.Now()},
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "unknown-client.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteBatchAppendsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir, []string{"mobile-android"})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteBatch([]Entry{{Source: "mobile-android", Level: "INFO", Message: "first", Timestamp: time.Now()}}))
	require.NoError(t, sink.WriteBatch([]Entry{{Source: "mobile-android", Level: "INFO", Message: "second", Timestamp: time.Now()}}))

	data, err := os.ReadFile(filepath.Join(dir, "mobile-android.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}
