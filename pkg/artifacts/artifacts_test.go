package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/revorc/pkg/config"
)

func TestKeyJoinsRunIDAndRelPath(t *testing.T) {
	assert.Equal(t, "run-1/plan.json", Key("run-1", "plan.json"))
}

func TestKeyTrimsSurroundingSlashes(t *testing.T) {
	assert.Equal(t, "run-1/logs/validate.log", Key("run-1/", "/logs/validate.log"))
}

func TestNewBuildsStoreFromConfig(t *testing.T) {
	s, err := New(config.S3Config{
		Endpoint:  "localhost:9000",
		Region:    "us-east-1",
		Bucket:    "rev-artifacts",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
	})
	require.NoError(t, err)
	assert.Equal(t, "rev-artifacts", s.bucket)
}
