package ntag424

// buildSV builds the 32-byte session-vector input for SV1 (b0=0xA5, b1=0x5A)
// or SV2 (b0=0x5A, b1=0xA5) per spec.md section 4.1:
//
//	b0 b1 || 00 01 00 80 || RndA[0:2] || (RndA[2:8] XOR RndB[0:6]) || RndB[6:16] || RndA[8:16]
func buildSV(b0, b1 byte, rndA, rndB []byte) []byte {
	sv := make([]byte, 32)
	sv[0], sv[1] = b0, b1
	sv[2], sv[3], sv[4], sv[5] = 0x00, 0x01, 0x00, 0x80
	copy(sv[6:8], rndA[0:2])
	for i := 0; i < 6; i++ {
		sv[8+i] = rndA[2+i] ^ rndB[i]
	}
	copy(sv[14:24], rndB[6:16])
	copy(sv[24:32], rndA[8:16])
	return sv
}

// deriveSessionKeys computes (Kenc, Kmac) = (CMAC(authKey, SV1), CMAC(authKey, SV2))
// per spec.md section 4.1. rndA and rndB must each be exactly 16 bytes.
func deriveSessionKeys(authKey, rndA, rndB []byte) (encKey, macKey []byte, err error) {
	sv1 := buildSV(0xA5, 0x5A, rndA, rndB)
	sv2 := buildSV(0x5A, 0xA5, rndA, rndB)

	encKey, err = aesCMAC(authKey, sv1)
	if err != nil {
		return nil, nil, err
	}
	macKey, err = aesCMAC(authKey, sv2)
	if err != nil {
		return nil, nil, err
	}
	return encKey, macKey, nil
}
