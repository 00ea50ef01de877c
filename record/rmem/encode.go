package rmem

import (
	"encoding/binary"

	"reld/record"
)

// splitFields decomposes a single encoded record into its per-field byte
// slices according to fields, following the record-layer encoding rule of
// spec §6.1: fixed-width fields occupy their declared width; variable-
// width fields (Width == -1) carry a 4-byte big-endian length prefix.
func splitFields(raw []byte, fields []record.FieldSpec) [][]byte {
	out := make([][]byte, len(fields))
	off := 0
	for i, f := range fields {
		if f.Width >= 0 {
			out[i] = raw[off : off+f.Width]
			off += f.Width
			continue
		}
		n := int(binary.BigEndian.Uint32(raw[off : off+4]))
		off += 4
		out[i] = raw[off : off+n]
		off += n
	}
	return out
}

// joinFields is the inverse of splitFields: it concatenates per-field
// byte slices into the single encoded record splitFields expects, adding
// a length prefix to each variable-width field.
func joinFields(parts [][]byte, fields []record.FieldSpec) []byte {
	size := 0
	for i, f := range fields {
		if f.Width >= 0 {
			size += f.Width
		} else {
			size += 4 + len(parts[i])
		}
	}
	out := make([]byte, 0, size)
	for i, f := range fields {
		if f.Width >= 0 {
			out = append(out, parts[i]...)
			continue
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(parts[i])))
		out = append(out, lenBuf[:]...)
		out = append(out, parts[i]...)
	}
	return out
}
