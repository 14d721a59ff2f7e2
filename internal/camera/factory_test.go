package camera

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10)

	src, err := Open(&config.Config{CameraSource: config.CameraSourceHTTP, CameraURL: "http://localhost/shot.jpg"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	src, err = Open(&config.Config{CameraSource: config.CameraSourceDirectory, CameraDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &DirectorySource{}, src)

	_, err = Open(&config.Config{CameraSource: "rtsp"})
	assert.Error(t, err)
}
