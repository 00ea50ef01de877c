package codec

import (
	"encoding/binary"

	"reld/execctx"
	"reld/rtype"
	"reld/value"
)

// EncodeTuple serializes tup's attributes, in heading's declared order,
// as the concatenation of their attribute encodings (spec §6.3: "Tuples
// are stored as the concatenation of their attribute encodings in
// declared order"). Variable-length attributes carry a 4-byte big-endian
// length prefix.
func EncodeTuple(store *rtype.Store, heading *rtype.Type, tup *value.Value) ([]byte, *execctx.Error) {
	var out []byte
	for _, a := range heading.Attrs {
		av, err := value.TupleGet(tup, a.Name)
		if err != nil {
			return nil, execctx.New(execctx.ErrInvalidArgument, "codec: tuple missing attribute "+a.Name)
		}
		if av.Type() == nil {
			// A caller built this attribute's value without annotating it
			// (e.g. a literal constructed ad hoc rather than read back
			// through DecodeScalar); fall back to heading's declared type,
			// the same default DecodeScalar applies on the read side.
			av.SetType(store.Get(a.Type))
		}
		enc, eerr := EncodeScalar(store, av)
		if eerr != nil {
			return nil, eerr
		}
		spec := FieldSpecFor(store, a.Name, a.Type)
		if spec.Width < 0 {
			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
			out = append(out, lenBuf[:]...)
		}
		out = append(out, enc...)
	}
	return out, nil
}

// DecodeTuple is the inverse of EncodeTuple.
func DecodeTuple(store *rtype.Store, heading *rtype.Type, raw []byte) (*value.Value, *execctx.Error) {
	tup := value.NewTuple()
	tup.SetType(heading)
	off := 0
	for _, a := range heading.Attrs {
		spec := FieldSpecFor(store, a.Name, a.Type)
		var field []byte
		if spec.Width < 0 {
			if off+4 > len(raw) {
				return nil, execctx.New(execctx.ErrDataCorrupted, "codec: truncated length prefix")
			}
			n := int(binary.BigEndian.Uint32(raw[off : off+4]))
			off += 4
			if off+n > len(raw) {
				return nil, execctx.New(execctx.ErrDataCorrupted, "codec: truncated variable field")
			}
			field = raw[off : off+n]
			off += n
		} else {
			if off+spec.Width > len(raw) {
				return nil, execctx.New(execctx.ErrDataCorrupted, "codec: truncated fixed field")
			}
			field = raw[off : off+spec.Width]
			off += spec.Width
		}
		at := store.Get(a.Type)
		av, derr := DecodeScalar(store, at, field)
		if derr != nil {
			return nil, derr
		}
		if serr := value.TupleSet(tup, a.Name, av); serr != nil {
			return nil, execctx.Wrap(execctx.ErrInternal, "codec: tuple_set during decode", serr)
		}
	}
	return tup, nil
}
