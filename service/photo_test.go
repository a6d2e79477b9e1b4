package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedPhoto(t *testing.T, width, height int) []byte {
	t.Helper()
	img := uniformPhoto(width, height)
	defer img.Close()
	data, err := EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestDecodePhotoResizesLongSide(t *testing.T) {
	photo, err := DecodePhoto(encodedPhoto(t, 400, 200), 100)
	require.NoError(t, err)
	defer photo.Close()

	assert.Equal(t, 100, photo.Cols())
	assert.Equal(t, 50, photo.Rows())
	assert.Equal(t, 3, photo.Channels())
}

func TestDecodePhotoKeepsSmallImages(t *testing.T) {
	photo, err := DecodePhoto(encodedPhoto(t, 64, 32), 1080)
	require.NoError(t, err)
	defer photo.Close()

	assert.Equal(t, 64, photo.Cols())
	assert.Equal(t, 32, photo.Rows())
}

func TestDecodePhotoRejectsGarbage(t *testing.T) {
	_, err := DecodePhoto([]byte("not an image"), 1080)
	assert.Error(t, err)
}
