//go:build wasip1

package abi

import (
	"unsafe"

	"github.com/reglet-dev/capgate/wireformat"
)

var memory = NewArena(MaxTotalAllocations, sliceAddr)

func sliceAddr(buf []byte) uint32 {
	//nolint:gosec // G103/G115: wasm32 linear memory addresses fit in 32 bits
	return uint32(uintptr(unsafe.Pointer(&buf[0])))
}

// allocate is called by the host to obtain memory for a response. It
// returns 0 when the arena is full, which the host treats as a failed write.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	ptr, err := memory.Alloc(size)
	if err != nil {
		return 0
	}
	return ptr
}

//go:wasmexport deallocate
func deallocate(ptr uint32, _ uint32) {
	memory.Free(ptr)
}

//go:wasmimport capgate load
func hostLoad(packed uint64) uint64

//go:wasmimport capgate call
func hostCall(packed uint64) uint64

//go:wasmimport capgate log
func hostLog(packed uint64)

// Load sends a JSON LoadRequestWire and returns the host's JSON reply.
func Load(request []byte) []byte {
	return roundTrip(hostLoad, request)
}

// Call sends a JSON CallRequestWire and returns the host's JSON reply.
func Call(request []byte) []byte {
	return roundTrip(hostCall, request)
}

// Log sends a JSON LogMessageWire. The host does not reply.
func Log(message []byte) {
	packed := PtrFromBytes(message)
	defer DeallocatePacked(packed)
	hostLog(packed)
}

func roundTrip(fn func(uint64) uint64, request []byte) []byte {
	in := PtrFromBytes(request)
	defer DeallocatePacked(in)

	out := fn(in)
	defer DeallocatePacked(out)
	return BytesFromPtr(out)
}

// PtrFromBytes copies data into pinned memory and returns its packed
// pointer and length. Release it with DeallocatePacked.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data)) //nolint:gosec // G115: bounded by MaxTotalAllocations
	ptr, err := memory.Alloc(size)
	if err != nil {
		panic(err)
	}
	buf, _ := memory.Bytes(ptr)
	copy(buf, data)
	return wireformat.PackPtrLen(ptr, size)
}

// BytesFromPtr copies the region described by packed out of linear memory.
func BytesFromPtr(packed uint64) []byte {
	ptr, length := wireformat.UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	//nolint:gosec // G103: reading guest linear memory written by the host
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	out := make([]byte, length)
	copy(out, src)
	return out
}

// DeallocatePacked frees memory described by a packed pointer and length.
func DeallocatePacked(packed uint64) {
	ptr, _ := wireformat.UnpackPtrLen(packed)
	if ptr != 0 {
		memory.Free(ptr)
	}
}

// FreeAllTracked releases every pinned allocation.
func FreeAllTracked() {
	memory.Reset()
}

// Stats reports the live allocations.
func Stats() (count, bytes int) {
	return memory.Stats()
}
