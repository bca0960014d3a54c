package oto

import (
	"encoding/binary"
	"math"

	"github.com/jackerseq/jacker"
)

// AudioBufferToFloat32LE appends the samples of buf to dst as interleaved
// stereo little-endian float32, the format of the oto context.
func AudioBufferToFloat32LE(buf jacker.AudioBuffer, dst []byte) []byte {
	for _, frame := range buf {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(frame[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(frame[1]))
	}
	return dst
}
