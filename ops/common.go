// Package ops is the operation library: one wrapper per kernel opcode,
// each validating and capturing its inputs, building the submission
// entry, and translating the completion back into a Go result or error.
package ops

import (
	"syscall"
	"unsafe"
)

// errFromRes translates a CQE result into a byte/fd count or an OS error,
// following the rule every wrapper in this package applies: nonnegative
// is a success payload, negative is a negated errno.
func errFromRes(res int32) (int32, error) {
	if res >= 0 {
		return res, nil
	}
	return 0, syscall.Errno(-res)
}

// bufAddr extracts the raw address of a non-empty byte slice's backing
// array, so wrappers hand the kernel a raw pointer instead of copying.
// Callers must keep the slice reachable (typically by holding it as an
// Action's hold) for as long as the kernel may still write through the
// pointer.
func bufAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
