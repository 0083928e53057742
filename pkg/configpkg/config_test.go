package configpkg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, ":5000", c.TCPAddress)
	require.Equal(t, 10, c.WorkerPoolSize)
	require.Equal(t, 0.025, c.InterestRate)
	require.Equal(t, time.Minute, c.InterestPeriod)
	require.Equal(t, "file", c.SnapshotDriver)
	require.Equal(t, "paseto", c.TokenType)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()

	content := "TCP_ADDRESS=:6000\nINTEREST_RATE=0.1\nINTEREST_PERIOD=5s\nADMIN_KEY=fromfile\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

	t.Setenv("WORKER_POOL_SIZE", "3")
	t.Setenv("ADMIN_KEY", "fromenv")

	c, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, ":6000", c.TCPAddress)
	require.Equal(t, 0.1, c.InterestRate)
	require.Equal(t, 5*time.Second, c.InterestPeriod)
	require.Equal(t, 3, c.WorkerPoolSize)
	require.Equal(t, "fromenv", c.AdminKey)
}
