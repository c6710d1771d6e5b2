package service

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"ridemetrics/internal/metrics"
	"ridemetrics/internal/samples"
	"ridemetrics/internal/store"
)

func writeFIT(t *testing.T, dir string, start time.Time, seconds int) string {
	t.Helper()
	file, err := fit.NewFile(fit.FileTypeActivity, fit.NewHeader(fit.V20, true))
	require.NoError(t, err)
	activity, err := file.Activity()
	require.NoError(t, err)

	for i := 0; i < seconds; i++ {
		rec := fit.NewRecordMsg()
		rec.Timestamp = start.Add(time.Duration(i) * time.Second)
		rec.Power = 180
		rec.HeartRate = 130
		activity.Records = append(activity.Records, rec)
	}

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	path := filepath.Join(dir, "ride.fit")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestImportFiles(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	good := writeFIT(t, dir, day0, 30)
	bad := filepath.Join(dir, "bad.fit")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))

	svc := NewImportService(db, testLogger())
	res := svc.ImportFiles([]string{good, bad})
	require.Len(t, res.Imported, 1)
	require.Len(t, res.Errors, 1)

	id := res.Imported[0].ID
	a, err := db.GetActivity(id)
	require.NoError(t, err)
	assert.Equal(t, store.SourceFIT, a.Source)
	assert.True(t, a.SamplesSynced)
	assert.Equal(t, day0, a.StartTime)

	n, err := db.CountSamples(id)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	// a cached result is dropped when the ride is imported again
	require.NoError(t, db.SaveResult(&store.MetricResult{
		ActivityID: id,
		Key:        metrics.KeyNormalizedPower,
		Version:    1,
		Summary:    metrics.Summary{"normalized_power_w": samples.Float(1)},
	}))
	res = svc.ImportFiles([]string{good})
	require.Len(t, res.Imported, 1)
	assert.Equal(t, id, res.Imported[0].ID)

	_, err = db.GetResult(id, metrics.KeyNormalizedPower, 1)
	assert.ErrorIs(t, err, store.ErrResultNotFound)
}
