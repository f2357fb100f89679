package common

import (
	"encoding/hex"
	"testing"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestGenerateRandByteArray_Length(t *testing.T) {
	if got := len(GenerateRandByteArray(24)); got != 24 {
		t.Fatalf("expected 24 bytes, got %d", got)
	}
}

func TestRandomDigits_OnlyDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := RandomDigits(VerificationCodeLength)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(s) != VerificationCodeLength {
			t.Fatalf("expected %d digits, got %q", VerificationCodeLength, s)
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit %q in %q", r, s)
			}
		}
	}
}

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}
