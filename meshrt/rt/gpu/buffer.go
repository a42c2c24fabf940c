package gpu

import (
	"errors"
)

var (
	ErrIndirectCountMismatch = errors.New("indirect template size does not match primitive count")
	ErrBufferNotMapped       = errors.New("buffer not mapped")
	ErrOutOfRange            = errors.New("write out of buffer range")
	ErrOutOfMemory           = errors.New("out of device memory")
	ErrAllocationFailed      = errors.New("buffer allocation failed")
	ErrReleased              = errors.New("buffer released")
)

type BufferUsage uint32

const (
	UsageIndex BufferUsage = 1 << iota
	UsageVertex
	UsageIndirect
	UsageStorage
	UsageUniform
	UsageTransferSrc
	UsageTransferDst
)

// BufferDesc describes an allocation. HostVisible buffers may be mapped and
// written from the CPU every frame; the rest are filled through staged copies.
type BufferDesc struct {
	Label       string
	Size        uint64
	Usage       BufferUsage
	HostVisible bool
}

// Range is one write into a mapped buffer.
type Range struct {
	Offset uint64
	Data   []byte
}

type Buffer interface {
	Label() string
	Size() uint64
	Map() error
	Unmap()
	Copy(ranges ...Range) error
	Flush() error
	Release()
}

type Stage uint32

const (
	StageTransfer Stage = 1 << iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageFragmentShader
)

type Access uint32

const (
	AccessTransferWrite Access = 1 << iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessIndirectRead
	AccessShaderRead
)

// BufferBarrier orders a previous write against the next consumer of a
// buffer range.
type BufferBarrier struct {
	Buffer    Buffer
	Offset    uint64
	Size      uint64
	SrcStage  Stage
	DstStage  Stage
	SrcAccess Access
	DstAccess Access
}

// Device allocates buffers and records transfer work.
type Device interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	// CopyStaged uploads data into a device-local buffer at offset.
	CopyStaged(dst Buffer, data []byte, offset uint64) error
	Barrier(b BufferBarrier)
}

// transferBarrier is the barrier emitted after a staged upload.
func transferBarrier(buf Buffer, offset, size uint64, dst Stage, access Access) BufferBarrier {
	return BufferBarrier{
		Buffer:    buf,
		Offset:    offset,
		Size:      size,
		SrcStage:  StageTransfer,
		DstStage:  dst,
		SrcAccess: AccessTransferWrite,
		DstAccess: access,
	}
}

func checkRange(size, offset uint64, n int) error {
	if offset > size || uint64(n) > size-offset {
		return ErrOutOfRange
	}
	return nil
}

func releaseAll(bufs ...Buffer) {
	for _, b := range bufs {
		if b != nil {
			b.Release()
		}
	}
}
