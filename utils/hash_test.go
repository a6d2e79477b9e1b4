package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TIANLI0/StrokeCut/model"
)

func TestBytesMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", BytesMD5(nil))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", BytesMD5([]byte("abc")))
}

func TestStrokeKey(t *testing.T) {
	stroke := []model.Point{{X: 1, Y: 3}, {X: 2, Y: 4}}

	a := StrokeKey("photo", stroke)
	assert.Equal(t, a, StrokeKey("photo", stroke))
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, StrokeKey("other", stroke))
	assert.NotEqual(t, a, StrokeKey("photo", []model.Point{{X: 2, Y: 4}, {X: 1, Y: 3}}))
}

func TestNewSessionID(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
	assert.Len(t, NewSessionID(), 36)
}
