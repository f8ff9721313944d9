package ntag424

// This file is the public surface of the "Crypto primitives & SV derivation"
// component (spec.md section 2/4.1), used both internally by Tag/
// SecureMessaging and externally by pkg/keyprovider (which has no other way
// to reach these otherwise-unexported helpers without duplicating them).

// AesCbcEncrypt CBC-encrypts plain under key/iv. plain's length must be a
// multiple of 16.
func AesCbcEncrypt(key, iv, plain []byte) ([]byte, error) {
	return aesCBCEncrypt(key, iv, plain)
}

// AesCbcDecrypt CBC-decrypts cipher under key/iv. cipher's length must be a
// multiple of 16.
func AesCbcDecrypt(key, iv, cipher []byte) ([]byte, error) {
	return aesCBCDecrypt(key, iv, cipher)
}

// AesCmac computes the 16-byte AES-CMAC (RFC 4493) of data under key.
func AesCmac(key, data []byte) ([]byte, error) {
	return aesCMAC(key, data)
}

// RotateLeft1 byte-rotates buf left by one position.
func RotateLeft1(buf []byte) []byte { return rotateLeft1(buf) }

// RotateRight1 byte-rotates buf right by one position.
func RotateRight1(buf []byte) []byte { return rotateRight1(buf) }

// VerifyRndAPrime is the constant-time check that rndAPrime equals
// RotateLeft1(rndA).
func VerifyRndAPrime(rndA, rndAPrime []byte) bool { return verifyRndAPrime(rndA, rndAPrime) }

// DeriveSessionKeys computes (encKey, macKey) = (CMAC(authKey, SV1),
// CMAC(authKey, SV2)) per spec.md section 4.1, given the 16-byte authKey and
// the 16-byte RndA/RndB nonces.
func DeriveSessionKeys(authKey, rndA, rndB []byte) (encKey, macKey []byte, err error) {
	return deriveSessionKeys(authKey, rndA, rndB)
}

// Crc32Nk computes CRC-32/JAMCRC over data, little-endian, used by ChangeKey
// for non-auth key slots (spec.md section 4.1/4.3).
func Crc32Nk(data []byte) [4]byte { return crc32JamCRC(data) }

// SecureZero overwrites buf with zeros. Apply to every key, RndA, RndB, and
// session-key value that leaves scope (spec.md section 4.1).
func SecureZero(buf []byte) { secureZero(buf) }

// PadISO7816_4 applies ISO/IEC 7816-4 padding (0x80 then 0x00 fill, always
// at least one byte).
func PadISO7816_4(data []byte) []byte { return padISO7816_4(data) }

// UnpadISO7816_4 strips ISO/IEC 7816-4 padding; a missing 0x80 is DataLoss.
func UnpadISO7816_4(data []byte) ([]byte, error) { return unpadISO7816_4(data) }
