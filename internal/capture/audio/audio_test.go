package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
)

func TestDecodeS16PassThrough(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(int16(100)))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(int16(-100)))

	out := convertToStereoS16(buf, malgo.FormatS16, 2, 1)
	assert.Equal(t, []int16{100, -100}, out)
}

func TestDecodeF32ClampsAndScales(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(2.0)) // out of range, clamps to 1.0
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(-0.5))

	out := convertToStereoS16(buf, malgo.FormatF32, 2, 1)
	assert.Equal(t, int16(32767), out[0])
	assert.Equal(t, int16(-16383), out[1])
}

func TestDuplicateIfMono(t *testing.T) {
	out := duplicateIfMono([]int16{10, 20}, 1)
	assert.Equal(t, []int16{10, 10, 20, 20}, out)

	stereo := duplicateIfMono([]int16{10, 20}, 2)
	assert.Equal(t, []int16{10, 20}, stereo)
}
