package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextMultiple(t *testing.T) {
	assert.Equal(t, 0, NextMultiple(0, 512))
	assert.Equal(t, 512, NextMultiple(1, 512))
	assert.Equal(t, 512, NextMultiple(512, 512))
	assert.Equal(t, 1024, NextMultiple(513, 512))
	assert.Equal(t, uint32(18), NextMultiple[uint32](17, 6))
}
