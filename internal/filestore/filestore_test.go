package filestore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewNameKeepsExtension(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name := NewName("Portrait.JPG", now)
	assert.True(t, strings.HasPrefix(name, "1700000000123-"), name)
	assert.True(t, strings.HasSuffix(name, ".jpg"), name)
}

func TestNewNameDropsSuspiciousExtension(t *testing.T) {
	now := time.UnixMilli(1)
	assert.False(t, strings.Contains(NewName("no-extension", now), "."))
	assert.False(t, strings.Contains(NewName(`image.p\ng`, now), `\`))
	assert.False(t, strings.Contains(NewName("image.thisiswaytoolong", now), "."))
}

func TestNewNameIsUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for range 1000 {
		name := NewName("a.png", now)
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, validName("1700000000000-abc.png"))
	for _, name := range []string{"", ".", "..", "../etc/passwd", `..\boot.ini`, "a/b"} {
		assert.False(t, validName(name), name)
	}
}

func TestMinioConfigValidate(t *testing.T) {
	valid := MinioConfig{Endpoint: "localhost:9000", AccessKeyID: "key", SecretAccessKey: "secret", Bucket: "images"}
	assert.NoError(t, valid.Validate())

	missingEndpoint := valid
	missingEndpoint.Endpoint = ""
	assert.ErrorContains(t, missingEndpoint.Validate(), "endpoint")

	missingSecret := valid
	missingSecret.SecretAccessKey = ""
	assert.ErrorContains(t, missingSecret.Validate(), "secretAccessKey")
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(context.Background(), Config{Backend: BackendLocal, Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = New(context.Background(), Config{Backend: "ftp"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = New(context.Background(), Config{Backend: BackendMinio}, zap.NewNop())
	assert.ErrorContains(t, err, "missing minio config")
}
