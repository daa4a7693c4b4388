package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/stratad/internal/logging"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := logging.New("info", format)
		require.NoError(t, err, "format %s", format)
		assert.NotNil(t, logger)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logging.New("loud", "json")
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := logging.New("info", "xml")
	assert.Error(t, err)
}
