package ntag424

import (
	"bytes"
	"testing"
)

// TestBuildSVLayout checks the exact 32-byte SV1/SV2 byte layout against a
// hand-computed vector for RndA = 00..0F, RndB = 10..1F: b0 b1 || 00 01 00
// 80 || RndA[0:2] || (RndA[2:8] XOR RndB[0:6]) || RndB[6:16] || RndA[8:16].
func TestBuildSVLayout(t *testing.T) {
	rndA := make([]byte, 16)
	rndB := make([]byte, 16)
	for i := range rndA {
		rndA[i] = byte(i)
		rndB[i] = byte(16 + i)
	}

	sv1 := buildSV(0xA5, 0x5A, rndA, rndB)
	wantSV1 := mustHex(t, "a55a000100800001121216161212161718191a1b1c1d1e1f08090a0b0c0d0e0f")
	if !bytes.Equal(sv1, wantSV1) {
		t.Fatalf("SV1 = %x, want %x", sv1, wantSV1)
	}

	sv2 := buildSV(0x5A, 0xA5, rndA, rndB)
	wantSV2 := mustHex(t, "5aa5000100800001121216161212161718191a1b1c1d1e1f08090a0b0c0d0e0f")
	if !bytes.Equal(sv2, wantSV2) {
		t.Fatalf("SV2 = %x, want %x", sv2, wantSV2)
	}
}

// TestDeriveSessionKeysMatchesCMACOfSV checks the composition
// deriveSessionKeys = (CMAC(authKey, SV1), CMAC(authKey, SV2)), tying the
// hand-verified SV layout to the RFC-4493-verified CMAC primitive.
func TestDeriveSessionKeysMatchesCMACOfSV(t *testing.T) {
	authKey := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	rndA := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	rndB := mustHex(t, "101112131415161718191a1b1c1d1e1f")

	encKey, macKey, err := deriveSessionKeys(authKey, rndA, rndB)
	if err != nil {
		t.Fatalf("deriveSessionKeys: %v", err)
	}

	wantEnc, err := aesCMAC(authKey, buildSV(0xA5, 0x5A, rndA, rndB))
	if err != nil {
		t.Fatalf("aesCMAC(SV1): %v", err)
	}
	wantMac, err := aesCMAC(authKey, buildSV(0x5A, 0xA5, rndA, rndB))
	if err != nil {
		t.Fatalf("aesCMAC(SV2): %v", err)
	}

	if !bytes.Equal(encKey, wantEnc) {
		t.Fatalf("encKey = %x, want %x", encKey, wantEnc)
	}
	if !bytes.Equal(macKey, wantMac) {
		t.Fatalf("macKey = %x, want %x", macKey, wantMac)
	}
	if bytes.Equal(encKey, macKey) {
		t.Fatal("encKey and macKey must differ (SV1 != SV2)")
	}
}
