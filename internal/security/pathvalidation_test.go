package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	outside := filepath.Join(tmpDir, "outside")
	require.NoError(t, os.MkdirAll(safeDir, 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "library.db"), []byte("x"), 0644))
	link := filepath.Join(safeDir, "link")
	require.NoError(t, os.Symlink(outside, link))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"new file in dir", filepath.Join(safeDir, "hist.png"), false},
		{"nested new file", filepath.Join(safeDir, "plots", "hist.png"), false},
		{"dot dot escape", filepath.Join(safeDir, "..", "hist.png"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"through symlink", filepath.Join(link, "library.db"), true},
		{"new file under symlink", filepath.Join(link, "new.png"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestValidatePathWithinMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(missing, "a.png"), missing))
}

func TestValidateExportPath(t *testing.T) {
	assert.NoError(t, ValidateExportPath(filepath.Join(os.TempDir(), "calibration.png")))
	assert.NoError(t, ValidateExportPath("calibration.png"))
	assert.Error(t, ValidateExportPath("/etc/passwd"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Sentadilla lumbar":    "Sentadilla_lumbar",
		"bridge / hold":        "bridge_hold",
		"../../etc/passwd":     "etc_passwd",
		"already-safe_v1.json": "already-safe_v1.json",
		"plancha__lateral":     "plancha_lateral",
		"ñandú":                "and",
		"":                     "unknown",
		"***":                  "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "SanitizeFilename(%q)", in)
	}

	long := SanitizeFilename(strings.Repeat("a", 500))
	assert.Len(t, long, maxFilenameLen)
}
