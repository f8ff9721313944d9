package ntag424

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// TestAesCmacRFC4493Vectors checks aesCMAC against the published RFC 4493
// section 4 test vectors: a fixed 128-bit key and increasing prefixes of a
// 64-byte message. Mlen=0 and Mlen=40 exercise the padded, K2-XORed last
// block; Mlen=16 and Mlen=64 exercise the complete, K1-XORed last block.
func TestAesCmacRFC4493Vectors(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	msg := mustHex(t, "6bc1bee22e409f96e93d7e117393172a"+
		"ae2d8a571e03ac9c9eb76fac01c1e530"+
		"3ff1caa1681fac09120eca307586e1a7"+
		"8cb9fcf2f1960c08e81d2b40c5d3eb8e")

	cases := []struct {
		name    string
		mlen    int
		wantHex string
	}{
		{"Mlen0", 0, "bb1d6929e95937287fa37d129b756746"},
		{"Mlen16", 16, "070a16b46b4d4144f79bdd9dd04a287c"},
		{"Mlen40", 40, "6fbf4d4eb5f144eaa4ee27d331f87a0a"},
		{"Mlen64", 64, "b6d905288e2df9881e1f36a79a3e6bca"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := aesCMAC(key, msg[:c.mlen])
			if err != nil {
				t.Fatalf("aesCMAC: %v", err)
			}
			want := mustHex(t, c.wantHex)
			if !bytes.Equal(got, want) {
				t.Fatalf("CMAC = %x, want %x", got, want)
			}
		})
	}
}

// TestCmacTruncateOddIndices checks the CMACt scheme: the 8 bytes at odd
// indices (1,3,5,...,15) of a 16-byte CMAC.
func TestCmacTruncateOddIndices(t *testing.T) {
	mac := make([]byte, 16)
	for i := range mac {
		mac[i] = byte(i)
	}
	got := cmacTruncate(mac)
	want := []byte{1, 3, 5, 7, 9, 11, 13, 15}
	if !bytes.Equal(got, want) {
		t.Fatalf("cmacTruncate = %v, want %v", got, want)
	}
}

// TestCrc32JamCRCKnownVector checks crc32JamCRC against the CRC-32/JAMCRC
// catalogue check value (input "123456789" -> 0x340BC6D9), little-endian.
func TestCrc32JamCRCKnownVector(t *testing.T) {
	got := crc32JamCRC([]byte("123456789"))
	want := [4]byte{0xD9, 0xC6, 0x0B, 0x34}
	if got != want {
		t.Fatalf("crc32JamCRC(\"123456789\") = %x, want %x", got, want)
	}
}

func TestPadISO7816_4AlwaysAddsAtLeastOneByte(t *testing.T) {
	for _, n := range []int{0, 1, 7, 15, 16, 17, 31, 32} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i + 1)
		}
		padded := padISO7816_4(data)
		wantLen := ((n / 16) + 1) * 16
		if len(padded) != wantLen {
			t.Fatalf("len=%d: padded length = %d, want %d", n, len(padded), wantLen)
		}
		if padded[n] != 0x80 {
			t.Fatalf("len=%d: byte at index %d = %#x, want 0x80", n, n, padded[n])
		}
		for i := n + 1; i < len(padded); i++ {
			if padded[i] != 0x00 {
				t.Fatalf("len=%d: trailing byte %d = %#x, want 0x00", n, i, padded[i])
			}
		}
	}
}

func TestPadUnpadISO7816_4RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 15, 16, 17, 31, 32, 47} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*7 + 3)
		}
		padded := padISO7816_4(data)
		got, err := unpadISO7816_4(padded)
		if err != nil {
			t.Fatalf("len=%d: unpad: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("len=%d: round trip = %v, want %v", n, got, data)
		}
	}
}

func TestUnpadISO7816_4MissingTerminatorIsDataLoss(t *testing.T) {
	_, err := unpadISO7816_4([]byte{0x01, 0x02, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected an error for data with no 0x80 terminator")
	}
}

func TestRotateLeftRightAreInverses(t *testing.T) {
	in := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	left := rotateLeft1(in)
	wantLeft := mustHex(t, "0102030405060708090a0b0c0d0e0f00")
	if !bytes.Equal(left, wantLeft) {
		t.Fatalf("rotateLeft1 = %x, want %x", left, wantLeft)
	}
	back := rotateRight1(left)
	if !bytes.Equal(back, in) {
		t.Fatalf("rotateRight1(rotateLeft1(x)) = %x, want %x", back, in)
	}
}

func TestVerifyRndAPrime(t *testing.T) {
	rndA := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	rndAPrime := rotateLeft1(rndA)
	if !verifyRndAPrime(rndA, rndAPrime) {
		t.Fatal("expected RotateLeft1(rndA) to verify")
	}
	if verifyRndAPrime(rndA, rndA) {
		t.Fatal("expected the unrotated value to fail verification")
	}
}

// TestAesCbcRoundTrip confirms aesCBCEncrypt/aesCBCDecrypt agree, using the
// RFC 4493 key as an arbitrary 128-bit AES key.
func TestAesCbcRoundTrip(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac01c1e530")

	enc, err := aesCBCEncrypt(key, iv, plain)
	if err != nil {
		t.Fatalf("aesCBCEncrypt: %v", err)
	}
	dec, err := aesCBCDecrypt(key, iv, enc)
	if err != nil {
		t.Fatalf("aesCBCDecrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("round trip = %x, want %x", dec, plain)
	}
}
