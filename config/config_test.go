package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "/var/lib/carrierconf/telephony.db", cfg.Database.Path)
	require.Equal(t, 4, cfg.Database.PaletteSize)
	require.Equal(t, 5*time.Second, cfg.Prefs.Timeout)
	require.Equal(t, "default", cfg.SPN.Profile)
	require.Equal(t, int64(1), cfg.DefaultSubID)
	require.Equal(t, 250*time.Millisecond, cfg.SlowThreshold)
	require.False(t, cfg.Assets.S3.Enable)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carrierconf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/x.db
  omacp: true
spn:
  profile: southeast
assets:
  s3:
    enable: true
    bucket: from-file
logging:
  level: debug
`), 0o644))
	t.Setenv("CARRIERCONF_ASSETS_S3_BUCKET", "from-env")
	t.Setenv("CARRIERCONF_DEFAULTSUBID", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.db", cfg.Database.Path)
	require.Equal(t, "southeast", cfg.SPN.Profile)
	require.Equal(t, "from-env", cfg.Assets.S3.Bucket)
	require.Equal(t, int64(3), cfg.DefaultSubID)
	require.Equal(t, "debug", cfg.Logging.Level)

	db := cfg.DatabaseConfig()
	require.True(t, db.OMACP)
	require.Equal(t, "/tmp/x.db", db.Path)
	require.Equal(t, cfg.Prefs.Path, cfg.PrefsConfig().Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
