package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUDevice backs buffers with webgpu. Host-visible buffers keep a CPU
// shadow; Flush pushes the written span through Queue.WriteBuffer. WebGPU
// tracks hazards itself, so barriers are dropped.
type WGPUDevice struct {
	Device *wgpu.Device
}

func NewWGPUDevice(device *wgpu.Device) *WGPUDevice {
	return &WGPUDevice{Device: device}
}

func usageFlags(u BufferUsage) wgpu.BufferUsage {
	out := wgpu.BufferUsageCopyDst
	if u&UsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&UsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&UsageIndirect != 0 {
		out |= wgpu.BufferUsageIndirect
	}
	if u&UsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&UsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&UsageTransferSrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	return out
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}

// flushSpan widens the dirty span [lo,hi) to 4-byte boundaries, capped at
// size. ok is false when nothing is dirty.
func flushSpan(lo, hi, size uint64) (start, end uint64, ok bool) {
	if hi <= lo {
		return 0, 0, false
	}
	start = lo &^ 3
	end = min(align4(hi), size)
	return start, end, start < end
}

// padTo4 zero-extends data to a multiple of 4 bytes, as Queue.WriteBuffer
// requires.
func padTo4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	padded := make([]byte, align4(uint64(len(data))))
	copy(padded, data)
	return padded
}

// allocationError keeps the device's cause. WebGPU does not say whether a
// failure was memory or validation, so it never reports ErrOutOfMemory.
func allocationError(label string, size uint64, cause error) error {
	return fmt.Errorf("%w: %q (%d bytes): %w", ErrAllocationFailed, label, size, cause)
}

func (d *WGPUDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	size := align4(max(desc.Size, 4))
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             size,
		Usage:            usageFlags(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, allocationError(desc.Label, size, err)
	}
	b := &wgpuBuffer{desc: desc, buf: buf, queue: d.Device.GetQueue()}
	if desc.HostVisible {
		b.shadow = make([]byte, size)
	}
	return b, nil
}

func (d *WGPUDevice) CopyStaged(dst Buffer, data []byte, offset uint64) error {
	wb, ok := dst.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("webgpu device cannot copy into %T", dst)
	}
	if err := checkRange(wb.Size(), offset, len(data)); err != nil {
		return fmt.Errorf("staged copy into %q at %d (+%d): %w", wb.Label(), offset, len(data), err)
	}
	if len(data) == 0 {
		return nil
	}
	wb.queue.WriteBuffer(wb.buf, offset, padTo4(data))
	return nil
}

func (d *WGPUDevice) Barrier(BufferBarrier) {}

type wgpuBuffer struct {
	desc   BufferDesc
	buf    *wgpu.Buffer
	queue  *wgpu.Queue
	shadow []byte
	mapped bool

	dirtyLo, dirtyHi uint64
}

func (b *wgpuBuffer) Label() string { return b.desc.Label }
func (b *wgpuBuffer) Size() uint64  { return b.desc.Size }

// Raw returns the underlying webgpu buffer for binding.
func (b *wgpuBuffer) Raw() *wgpu.Buffer { return b.buf }

func (b *wgpuBuffer) Map() error {
	if b.buf == nil {
		return ErrReleased
	}
	if b.shadow == nil {
		return fmt.Errorf("%q is not host visible: %w", b.desc.Label, ErrBufferNotMapped)
	}
	b.mapped = true
	b.dirtyLo, b.dirtyHi = uint64(len(b.shadow)), 0
	return nil
}

func (b *wgpuBuffer) Unmap() { b.mapped = false }

func (b *wgpuBuffer) Copy(ranges ...Range) error {
	if !b.mapped {
		return fmt.Errorf("%q: %w", b.desc.Label, ErrBufferNotMapped)
	}
	for _, r := range ranges {
		if err := checkRange(b.Size(), r.Offset, len(r.Data)); err != nil {
			return fmt.Errorf("%q at %d (+%d): %w", b.desc.Label, r.Offset, len(r.Data), err)
		}
	}
	for _, r := range ranges {
		if len(r.Data) == 0 {
			continue
		}
		copy(b.shadow[r.Offset:], r.Data)
		b.dirtyLo = min(b.dirtyLo, r.Offset)
		b.dirtyHi = max(b.dirtyHi, r.Offset+uint64(len(r.Data)))
	}
	return nil
}

func (b *wgpuBuffer) Flush() error {
	if !b.mapped {
		return fmt.Errorf("%q: %w", b.desc.Label, ErrBufferNotMapped)
	}
	lo, hi, ok := flushSpan(b.dirtyLo, b.dirtyHi, uint64(len(b.shadow)))
	if !ok {
		return nil
	}
	b.queue.WriteBuffer(b.buf, lo, b.shadow[lo:hi])
	b.dirtyLo, b.dirtyHi = uint64(len(b.shadow)), 0
	return nil
}

func (b *wgpuBuffer) Release() {
	if b.buf == nil {
		return
	}
	b.buf.Release()
	b.buf = nil
	b.shadow = nil
	b.mapped = false
}

// RawBuffer unwraps a buffer created by WGPUDevice.
func RawBuffer(b Buffer) *wgpu.Buffer {
	if wb, ok := b.(*wgpuBuffer); ok {
		return wb.buf
	}
	return nil
}
