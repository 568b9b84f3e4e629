package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParse_FlagsOnly(t *testing.T) {
	t.Setenv(EnvJWTKey, "")

	c, err := Parse(newFlagSet(), []string{"-jwt-key", "k", "-addr", ":9000", "-enforce-conflicts=false"})
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Addr)
	require.Equal(t, "k", c.JWTKey)
	require.False(t, c.EnforceConflicts)
	require.Equal(t, Defaults().DSN, c.DSN)
}

func TestParse_FileUnderExplicitFlags(t *testing.T) {
	t.Setenv(EnvJWTKey, "")

	p := writeFile(t, `
addr: ":7000"
dsn: "postgres://file"
jwt_key: "from-file"
metrics_addr: ""
shutdown_timeout: 10s
auth_max_fails: 3
`)
	c, err := Parse(newFlagSet(), []string{"-config", p, "-addr", ":7100"})
	require.NoError(t, err)
	require.Equal(t, ":7100", c.Addr)
	require.Equal(t, "postgres://file", c.DSN)
	require.Equal(t, "from-file", c.JWTKey)
	require.Empty(t, c.MetricsAddr)
	require.Equal(t, 10*time.Second, c.ShutdownTimeout)
	require.True(t, c.EnforceConflicts)
	require.Equal(t, 3, c.AuthMaxFails)
	require.Equal(t, 15*time.Minute, c.AuthWindow)
}

func TestParse_EnvKey(t *testing.T) {
	t.Setenv(EnvJWTKey, "env-key")

	c, err := Parse(newFlagSet(), nil)
	require.NoError(t, err)
	require.Equal(t, "env-key", c.JWTKey)
}

func TestParse_Errors(t *testing.T) {
	t.Setenv(EnvJWTKey, "")

	_, err := Parse(newFlagSet(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Parse(newFlagSet(), []string{"-config", writeFile(t, "addr: [")})
	require.Error(t, err)

	_, err = Parse(newFlagSet(), []string{"-no-such-flag"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	c := Defaults()
	c.JWTKey = "k"
	require.NoError(t, c.Validate())

	c.Dev = true
	c.TLSCert = ""
	require.NoError(t, c.Validate())

	bad := Server{}
	err := bad.Validate()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 6)
}
