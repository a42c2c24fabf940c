package gpu

import (
	"encoding/binary"
)

// DrawIndexedIndirectSize is the byte size of one indexed indirect command.
const DrawIndexedIndirectSize = 20

// DrawIndexedIndirect mirrors the GPU command layout: indexCount,
// instanceCount, firstIndex, vertexOffset (signed), firstInstance.
type DrawIndexedIndirect struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

func (c DrawIndexedIndirect) AppendBytes(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, c.IndexCount)
	buf = binary.LittleEndian.AppendUint32(buf, c.InstanceCount)
	buf = binary.LittleEndian.AppendUint32(buf, c.FirstIndex)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.VertexOffset))
	buf = binary.LittleEndian.AppendUint32(buf, c.FirstInstance)
	return buf
}

// DecodeDrawIndexedIndirect reads the command at byte offset off.
func DecodeDrawIndexedIndirect(buf []byte, off uint64) DrawIndexedIndirect {
	b := buf[off : off+DrawIndexedIndirectSize]
	return DrawIndexedIndirect{
		IndexCount:    binary.LittleEndian.Uint32(b[0:]),
		InstanceCount: binary.LittleEndian.Uint32(b[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(b[8:]),
		VertexOffset:  int32(binary.LittleEndian.Uint32(b[12:])),
		FirstInstance: binary.LittleEndian.Uint32(b[16:]),
	}
}

func commandsBytes(cmds []DrawIndexedIndirect) []byte {
	out := make([]byte, 0, len(cmds)*DrawIndexedIndirectSize)
	for _, c := range cmds {
		out = c.AppendBytes(out)
	}
	return out
}
