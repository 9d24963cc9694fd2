package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/dashmtx/internal/logger"
)

func writeTempConf(t *testing.T, cnt string) string {
	fpath := filepath.Join(t.TempDir(), "dashmtx.yml")
	err := os.WriteFile(fpath, []byte(cnt), 0o644)
	require.NoError(t, err)
	return fpath
}

func TestLoadDefaults(t *testing.T) {
	conf, found, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.NoError(t, err)
	require.Equal(t, false, found)
	require.Equal(t, LogLevel(logger.Info), conf.LogLevel)
	require.Equal(t, Duration(5*time.Second), conf.FragmentDuration)
	require.Equal(t, Duration(10*time.Second), conf.UpdatePeriod)
	require.Equal(t, 5, conf.WindowSize)
	require.Equal(t, "%app/%stream.mpd", conf.MPDPath)
}

func TestLoadFromFile(t *testing.T) {
	fpath := writeTempConf(t, "logLevel: debug\n"+
		"dashDir: /var/lib/dashmtx\n"+
		"fragmentDuration: 2s\n"+
		"updatePeriod: 5s\n"+
		"windowSize: 3\n"+
		"paths:\n"+
		"  live/stream:\n"+
		"    windowSize: 4\n")

	conf, found, err := Load(fpath)
	require.NoError(t, err)
	require.Equal(t, true, found)
	require.Equal(t, LogLevel(logger.Debug), conf.LogLevel)
	require.Equal(t, "/var/lib/dashmtx", conf.DashDir)
	require.Equal(t, Duration(2*time.Second), conf.FragmentDuration)

	pconf, ok := conf.Paths["live/stream"]
	require.Equal(t, true, ok)
	require.Equal(t, 4, pconf.WindowSize)
	require.Equal(t, Duration(2*time.Second), pconf.FragmentDuration)
	require.Equal(t, Duration(5*time.Second), pconf.UpdatePeriod)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DASHMTX_LOGLEVEL", "warn")
	t.Setenv("DASHMTX_FRAGMENTDURATION", "3s")
	t.Setenv("DASHMTX_WINDOWSIZE", "7")

	conf, _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.NoError(t, err)
	require.Equal(t, LogLevel(logger.Warn), conf.LogLevel)
	require.Equal(t, Duration(3*time.Second), conf.FragmentDuration)
	require.Equal(t, 7, conf.WindowSize)
}

func TestLoadErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		conf string
		err  string
	}{
		{
			"invalid log level",
			"logLevel: critical\n",
			"invalid log level: 'critical'",
		},
		{
			"invalid duration",
			"fragmentDuration: abc\n",
			"invalid duration: 'abc'",
		},
		{
			"invalid window size",
			"windowSize: 0\n",
			"'windowSize' must be greater than zero",
		},
		{
			"invalid mpd path",
			"mpdPath: manifest.mpd\n",
			"'mpdPath' must contain %stream",
		},
		{
			"invalid path name",
			"paths:\n  stream:\n",
			"invalid path name: 'stream' (must be in the form app/stream)",
		},
		{
			"unknown parameter",
			"invalidParam: true\n",
			"",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			fpath := writeTempConf(t, ca.conf)
			_, _, err := Load(fpath)
			require.Error(t, err)
			if ca.err != "" {
				require.Contains(t, err.Error(), ca.err)
			}
		})
	}
}

func TestDurationMarshal(t *testing.T) {
	v, err := Duration(90 * time.Second).MarshalYAML()
	require.NoError(t, err)
	require.Equal(t, "1m30s", v)
}
