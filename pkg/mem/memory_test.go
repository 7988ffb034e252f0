package mem

import (
	"errors"
	"testing"
)

func TestReadWriteByteBounds(t *testing.T) {
	m := New(16)
	if err := m.WriteByte(15, 0xAB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := m.ReadByte(15)
	if err != nil || v != 0xAB {
		t.Fatalf("got (%v, %v), want (0xAB, nil)", v, err)
	}
	if err := m.WriteByte(16, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := m.ReadByte(16); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		size  int
		value uint32
	}{
		{1, 0xFF},
		{2, 0xBEEF},
		{4, 0xCAFEBABE},
	}
	for _, c := range cases {
		m := New(64)
		if err := m.Write(4, c.size, c.value); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		got, err := m.Read(4, c.size, false)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		mask := uint32(1)<<(uint(c.size)*8) - 1
		if got != c.value&mask {
			t.Fatalf("size %d: got 0x%x want 0x%x", c.size, got, c.value&mask)
		}
	}
}

func TestLittleEndianLayout(t *testing.T) {
	m := New(128)
	if err := m.Write(100, 4, 0xCAFEBABE); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xBE, 0xBA, 0xFE, 0xCA}
	for i, w := range want {
		b, err := m.ReadByte(uint32(100 + i))
		if err != nil || b != w {
			t.Fatalf("byte %d: got %#x want %#x", i, b, w)
		}
	}
}

func TestSignExtension(t *testing.T) {
	m := New(16)
	if err := m.Write(0, 1, 0xFF); err != nil {
		t.Fatal(err)
	}
	got, err := m.Read(0, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if int32(got) != -1 {
		t.Fatalf("got %d want -1", int32(got))
	}

	if err := m.Write(0, 2, 0x8000); err != nil {
		t.Fatal(err)
	}
	got, err = m.Read(0, 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if int32(got) != -32768 {
		t.Fatalf("got %d want -32768", int32(got))
	}
}

func TestTypedRoundTrip(t *testing.T) {
	m := New(64)
	types := []Type{U8, U16, U32}
	for _, ty := range types {
		if err := m.WriteTyped(8, ty, 0x7F); err != nil {
			t.Fatalf("%s: %v", ty, err)
		}
		got, err := m.ReadTyped(8, ty)
		if err != nil {
			t.Fatalf("%s: %v", ty, err)
		}
		if got != 0x7F {
			t.Fatalf("%s: got %d want 127", ty, got)
		}
	}
}

func TestUnknownType(t *testing.T) {
	m := New(16)
	if _, err := m.ReadTyped(0, "u64"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestReadOutOfBoundsReturnsZero(t *testing.T) {
	m := New(4)
	v, err := m.Read(2, 4, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if v != 0 {
		t.Fatalf("expected default 0, got %d", v)
	}
}
