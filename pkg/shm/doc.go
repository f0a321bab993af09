// Package shm is the shared-region allocator for the dataflow fabric.
//
// It owns exactly one concern: creating, opening and removing a single
// named, process-shared memory region sized to hold a node's control
// block plus its payload slot (see pkg/node). It knows nothing about the
// control block's layout — that is pkg/node's job — and treats the
// region as an opaque byte slice.
package shm
