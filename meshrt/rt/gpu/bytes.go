package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

func appendMat4(buf []byte, m mgl32.Mat4) []byte {
	for _, f := range m {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func appendFloat(buf []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
}

func appendUint32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

// ReadMat4 decodes a column-major matrix at byte offset off.
func ReadMat4(buf []byte, off uint64) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+uint64(i)*4:]))
	}
	return m
}

// ReadUint32 decodes a little-endian word at byte offset off.
func ReadUint32(buf []byte, off uint64) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) / a * a
}
