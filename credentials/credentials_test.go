package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvlbzn/aws-stack-application/credentials/credtest"
)

func TestLoadAbsent(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.pem")
	certPath := filepath.Join(dir, "cert.pem")

	t.Run("both missing", func(t *testing.T) {
		res, err := Load(keyPath, certPath)
		require.NoError(t, err)
		assert.Equal(t, Absent, res.Status)
		assert.Equal(t, []string{keyPath, certPath}, res.Missing)
		assert.Nil(t, res.Key)
		assert.Nil(t, res.Cert)
	})

	t.Run("cert missing", func(t *testing.T) {
		require.NoError(t, os.WriteFile(keyPath, []byte("key"), 0o600))
		res, err := Load(keyPath, certPath)
		require.NoError(t, err)
		assert.Equal(t, Absent, res.Status)
		assert.Equal(t, []string{certPath}, res.Missing)
	})
}

func TestLoadPresent(t *testing.T) {
	keyPath, certPath := credtest.WriteFiles(t, t.TempDir())

	res, err := Load(keyPath, certPath)
	require.NoError(t, err)
	assert.Equal(t, Present, res.Status)
	assert.Contains(t, string(res.Key), "PRIVATE KEY")
	assert.Contains(t, string(res.Cert), "CERTIFICATE")

	cfg, err := res.TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	keyPath, _ := credtest.WriteFiles(t, dir)
	// exists, but cannot be read as a file
	certPath := filepath.Join(dir, "certdir")
	require.NoError(t, os.Mkdir(certPath, 0o755))

	_, err := Load(keyPath, certPath)
	require.ErrorIs(t, err, ErrUnreadable)
	assert.Contains(t, err.Error(), certPath)
}

func TestTLSConfigMalformed(t *testing.T) {
	res := Result{Status: Present, Key: []byte("not a key"), Cert: []byte("not a cert")}
	_, err := res.TLSConfig()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTLSConfigAbsent(t *testing.T) {
	_, err := Result{Status: Absent}.TLSConfig()
	assert.ErrorIs(t, err, ErrAbsent)
}
