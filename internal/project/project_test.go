package project

import (
	"os"
	"path/filepath"
	"testing"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/pattern"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench"+Extension)

	p := New("bench", pattern.DefaultSpec(), calib.Fisheye)
	p.AddImage(path, filepath.Join(dir, "shots", "a.png"))
	p.AddImage(path, filepath.Join(dir, "shots", "b.png"))
	p.AddImage(path, filepath.Join(dir, "shots", "a.png"))
	p.SetResultPath(path, filepath.Join(dir, "out.npz"))
	require.NoError(t, p.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bench", got.Name)
	assert.Equal(t, pattern.DefaultSpec(), got.Pattern)
	assert.Equal(t, []string{filepath.Join("shots", "a.png"), filepath.Join("shots", "b.png")}, got.ImagePaths)
	assert.Equal(t, []string{
		filepath.Join(dir, "shots", "a.png"),
		filepath.Join(dir, "shots", "b.png"),
	}, got.GetImagePaths(path))
	assert.Equal(t, filepath.Join(dir, "out.npz"), got.GetResultPath(path))

	m, err := got.CameraModel()
	require.NoError(t, err)
	assert.Equal(t, calib.Fisheye, m)
}

func TestRemoveImage(t *testing.T) {
	path := "/data/session" + Extension
	p := New("s", pattern.DefaultSpec(), calib.Standard)
	p.AddImage(path, "/data/1.jpg")
	p.AddImage(path, "/data/2.jpg")

	assert.True(t, p.RemoveImage(path, "/data/1.jpg"))
	assert.False(t, p.RemoveImage(path, "/data/1.jpg"))
	assert.Equal(t, []string{"2.jpg"}, p.ImagePaths)
}

func TestDefaultResultPath(t *testing.T) {
	p := New("s", pattern.DefaultSpec(), calib.Standard)
	assert.Equal(t, "/data/session_calibration.json", p.GetResultPath("/data/session"+Extension))
}

func TestLoadRejectsInvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Extension)
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "pattern": {"kind": 0, "cols": 0}}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing"+Extension))
	assert.Error(t, err)
}
