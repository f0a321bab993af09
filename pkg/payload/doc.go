// Package payload provides typed adapters over a node's untyped byte
// payload. The fabric itself never interprets payload bytes; FrameView
// and RecordView are thin views constructed from a node.Descriptor,
// dispatching on the descriptor's Kind and, for frames, its pixel
// format tag (spec §9 "Polymorphism over payload type").
package payload
