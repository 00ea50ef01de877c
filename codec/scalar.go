package codec

import (
	"encoding/binary"
	"math"

	"reld/execctx"
	"reld/rtype"
	"reld/value"
)

// EncodeScalar serializes a scalar value to its fixed or variable-length
// wire representation, per spec §6.1/§6.3.
func EncodeScalar(store *rtype.Store, v *value.Value) ([]byte, *execctx.Error) {
	rh := scalarHandle(store, v.Type().Handle())
	switch rh {
	case rtype.HandleBoolean:
		b, err := value.Bool(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "encode boolean", err)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case rtype.HandleInteger:
		i, err := value.Int(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "encode integer", err)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(i))
		return buf, nil
	case rtype.HandleFloat:
		f, err := value.Float(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "encode float", err)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil
	case rtype.HandleDatetime:
		dt, err := value.GetDatetime(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "encode datetime", err)
		}
		buf := make([]byte, 7)
		binary.BigEndian.PutUint16(buf[0:2], uint16(dt.Year))
		buf[2], buf[3], buf[4], buf[5], buf[6] = byte(dt.Month), byte(dt.Day), byte(dt.Hour), byte(dt.Minute), byte(dt.Second)
		return buf, nil
	case rtype.HandleString, rtype.HandleBinary:
		b, err := value.Bytes(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "encode byte string", err)
		}
		return append([]byte(nil), b...), nil
	default:
		return nil, execctx.New(execctx.ErrNotSupported, "codec: no wire encoding for this scalar type")
	}
}

// DecodeScalar is the inverse of EncodeScalar, reconstructing a value of
// the declared type t from its wire bytes.
func DecodeScalar(store *rtype.Store, t *rtype.Type, raw []byte) (*value.Value, *execctx.Error) {
	rh := scalarHandle(store, t.Handle())
	v := value.New()
	v.SetType(t)
	switch rh {
	case rtype.HandleBoolean:
		if len(raw) != 1 {
			return nil, execctx.New(execctx.ErrDataCorrupted, "codec: malformed boolean")
		}
		value.SetBool(v, raw[0] != 0)
	case rtype.HandleInteger:
		if len(raw) != 8 {
			return nil, execctx.New(execctx.ErrDataCorrupted, "codec: malformed integer")
		}
		value.SetInt(v, int64(binary.BigEndian.Uint64(raw)))
	case rtype.HandleFloat:
		if len(raw) != 8 {
			return nil, execctx.New(execctx.ErrDataCorrupted, "codec: malformed float")
		}
		value.SetFloat(v, math.Float64frombits(binary.BigEndian.Uint64(raw)))
	case rtype.HandleDatetime:
		if len(raw) != 7 {
			return nil, execctx.New(execctx.ErrDataCorrupted, "codec: malformed datetime")
		}
		value.SetDatetime(v, value.Datetime{
			Year:   int(binary.BigEndian.Uint16(raw[0:2])),
			Month:  int(raw[2]),
			Day:    int(raw[3]),
			Hour:   int(raw[4]),
			Minute: int(raw[5]),
			Second: int(raw[6]),
		})
	case rtype.HandleString, rtype.HandleBinary:
		value.SetBytes(v, raw)
	default:
		return nil, execctx.New(execctx.ErrNotSupported, "codec: no wire decoding for this scalar type")
	}
	return v, nil
}
