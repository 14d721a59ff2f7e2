//go:build !gocv

package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDeviceSource_WithoutOpenCV(t *testing.T) {
	_, err := NewDeviceSource(0, 1280, 720)
	assert.ErrorIs(t, err, ErrDeviceUnsupported)
}
