// Package record defines the immutable log record produced for every finished
// placeholder evaluation, and the fixed-width wire format used to hand batches
// of records to a telemetry sink.
//
// This package contains value types and codecs only. All other internal
// packages import record; record imports nothing internal.
//
// Wire layout of one record (12 bytes, little endian):
//
//	offset  size  field
//	0       4     template identity hash
//	4       2     evaluation id
//	6       1     namespace index (252 globals, 253 locals, 254 builtins, 255 not found)
//	7       1     lookup count (bit 7 = failure, low 7 bits = count)
//	8       4     flags (2 bits per lookup step, step 0 least significant)
//
// Field order is part of the compatibility contract with log consumers and
// must never change.
package record
