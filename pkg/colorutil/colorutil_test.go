package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTab10(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}, Tab10(0))
	assert.Equal(t, Tab10(0), Tab10(10))
	assert.Equal(t, Tab10(3), Tab10(-3))
}

func TestNamed(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}, Named("green"))
	assert.Equal(t, color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}, Named("red"))
	assert.Equal(t, Black, Named("chartreuse"))
}
