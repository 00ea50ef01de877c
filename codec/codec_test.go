package codec

import (
	"testing"

	"reld/rtype"
	"reld/value"
)

func sampleHeading(store *rtype.Store) *rtype.Type {
	tt := &rtype.Type{
		Kind: rtype.KindTuple,
		Attrs: []rtype.Attr{
			{Name: "empno", Type: rtype.HandleInteger},
			{Name: "name", Type: rtype.HandleString},
			{Name: "salary", Type: rtype.HandleFloat},
			{Name: "active", Type: rtype.HandleBoolean},
		},
	}
	h := store.Add(tt)
	return store.Get(h)
}

func sampleTuple() *value.Value {
	tup := value.NewTuple()
	empno := value.New()
	value.SetInt(empno, 42)
	name := value.New()
	value.SetBytes(name, []byte("Smith"))
	salary := value.New()
	value.SetFloat(salary, 4000.5)
	active := value.New()
	value.SetBool(active, true)
	value.TupleSet(tup, "empno", empno)
	value.TupleSet(tup, "name", name)
	value.TupleSet(tup, "salary", salary)
	value.TupleSet(tup, "active", active)
	return tup
}

func TestTupleEncodeDecodeRoundTrip(t *testing.T) {
	store := rtype.NewStore()
	heading := sampleHeading(store)
	tup := sampleTuple()

	raw, err := EncodeTuple(store, heading, tup)
	if err != nil {
		t.Fatalf("EncodeTuple: %v", err)
	}
	decoded, err := DecodeTuple(store, heading, raw)
	if err != nil {
		t.Fatalf("DecodeTuple: %v", err)
	}
	eq, eerr := value.TupleEquals(tup, decoded)
	if eerr != nil {
		t.Fatalf("TupleEquals: %v", eerr)
	}
	if !eq {
		t.Fatalf("round-tripped tuple does not equal the original")
	}
}

func TestDatetimeRoundTripsThroughCoder(t *testing.T) {
	store := rtype.NewStore()
	dtType := store.Get(rtype.HandleDatetime)
	v := value.New()
	v.SetType(dtType)
	value.SetDatetime(v, value.Datetime{Year: 2020, Month: 6, Day: 15, Hour: 10, Minute: 30, Second: 45})

	raw, err := EncodeScalar(store, v)
	if err != nil {
		t.Fatalf("EncodeScalar: %v", err)
	}
	if len(raw) != 7 {
		t.Fatalf("expected 7-byte datetime encoding, got %d", len(raw))
	}
	decoded, derr := DecodeScalar(store, dtType, raw)
	if derr != nil {
		t.Fatalf("DecodeScalar: %v", derr)
	}
	dt, gerr := value.GetDatetime(decoded)
	if gerr != nil {
		t.Fatalf("GetDatetime: %v", gerr)
	}
	want := value.Datetime{Year: 2020, Month: 6, Day: 15, Hour: 10, Minute: 30, Second: 45}
	if dt != want {
		t.Fatalf("datetime round trip mismatch: got %+v want %+v", dt, want)
	}
}

func TestCompressorRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated many times: " +
		"the quick brown fox jumps over the lazy dog")
	for _, name := range []string{"none", "snappy", "lz4", "zstd"} {
		c, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%s): %v", name, err)
		}
		compressed, err := c.Compress(data)
		if err != nil {
			t.Fatalf("%s Compress: %v", name, err)
		}
		decompressed, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s Decompress: %v", name, err)
		}
		if string(decompressed) != string(data) {
			t.Fatalf("%s round trip mismatch", name)
		}
	}
}

func TestByNameRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := ByName("bogus"); err == nil {
		t.Fatalf("expected error for unknown compressor name")
	}
}
