package gpu

import (
	"fmt"
	"sync"
)

// StagedCopy records one CopyStaged call on a HostDevice.
type StagedCopy struct {
	Label  string
	Offset uint64
	Size   uint64
}

// HostDevice keeps every buffer in CPU memory. It records barriers and staged
// copies so callers can inspect the transfer sequence. A non-zero Budget
// makes allocations beyond it fail with ErrOutOfMemory.
type HostDevice struct {
	Budget uint64

	mu        sync.Mutex
	allocated uint64
	live      int
	barriers  []BufferBarrier
	copies    []StagedCopy
}

func NewHostDevice() *HostDevice {
	return &HostDevice{}
}

func (d *HostDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Budget > 0 && d.allocated+desc.Size > d.Budget {
		return nil, fmt.Errorf("%w: %q needs %d bytes, %d of %d in use", ErrOutOfMemory, desc.Label, desc.Size, d.allocated, d.Budget)
	}
	d.allocated += desc.Size
	d.live++
	return &HostBuffer{desc: desc, data: make([]byte, desc.Size), dev: d}, nil
}

func (d *HostDevice) CopyStaged(dst Buffer, data []byte, offset uint64) error {
	hb, ok := dst.(*HostBuffer)
	if !ok {
		return fmt.Errorf("host device cannot copy into %T", dst)
	}
	if hb.released {
		return ErrReleased
	}
	if err := checkRange(hb.Size(), offset, len(data)); err != nil {
		return fmt.Errorf("staged copy into %q at %d (+%d): %w", hb.Label(), offset, len(data), err)
	}
	copy(hb.data[offset:], data)

	d.mu.Lock()
	d.copies = append(d.copies, StagedCopy{Label: hb.Label(), Offset: offset, Size: uint64(len(data))})
	d.mu.Unlock()
	return nil
}

func (d *HostDevice) Barrier(b BufferBarrier) {
	d.mu.Lock()
	d.barriers = append(d.barriers, b)
	d.mu.Unlock()
}

// Allocated is the byte total of live buffers.
func (d *HostDevice) Allocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// LiveBuffers is the number of created but not released buffers.
func (d *HostDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *HostDevice) Barriers() []BufferBarrier {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]BufferBarrier(nil), d.barriers...)
}

func (d *HostDevice) StagedCopies() []StagedCopy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]StagedCopy(nil), d.copies...)
}

type HostBuffer struct {
	desc     BufferDesc
	data     []byte
	dev      *HostDevice
	mapped   bool
	released bool
	writes   int
	flushes  int
}

func (b *HostBuffer) Label() string { return b.desc.Label }
func (b *HostBuffer) Size() uint64  { return b.desc.Size }

func (b *HostBuffer) Map() error {
	if b.released {
		return ErrReleased
	}
	b.mapped = true
	return nil
}

func (b *HostBuffer) Unmap() { b.mapped = false }

func (b *HostBuffer) Copy(ranges ...Range) error {
	if !b.mapped {
		return fmt.Errorf("%q: %w", b.desc.Label, ErrBufferNotMapped)
	}
	for _, r := range ranges {
		if err := checkRange(b.Size(), r.Offset, len(r.Data)); err != nil {
			return fmt.Errorf("%q at %d (+%d): %w", b.desc.Label, r.Offset, len(r.Data), err)
		}
	}
	for _, r := range ranges {
		copy(b.data[r.Offset:], r.Data)
	}
	b.writes++
	return nil
}

func (b *HostBuffer) Flush() error {
	if !b.mapped {
		return fmt.Errorf("%q: %w", b.desc.Label, ErrBufferNotMapped)
	}
	b.flushes++
	return nil
}

func (b *HostBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.mapped = false
	b.dev.mu.Lock()
	b.dev.allocated -= b.desc.Size
	b.dev.live--
	b.dev.mu.Unlock()
}

// Bytes exposes the buffer contents.
func (b *HostBuffer) Bytes() []byte { return b.data }

// Writes counts successful Copy calls. Staged copies are not included.
func (b *HostBuffer) Writes() int        { return b.writes }
func (b *HostBuffer) Mapped() bool       { return b.mapped }
func (b *HostBuffer) Released() bool     { return b.released }
func (b *HostBuffer) Usage() BufferUsage { return b.desc.Usage }
