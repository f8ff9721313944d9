package ntag424

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
)

func aesCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	if len(key) != 16 || len(data)%16 != 0 {
		return nil, corerr.New(corerr.InvalidArgument, "ntag424.aesCBCEncrypt")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "ntag424.aesCBCEncrypt", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	if len(key) != 16 || len(data)%16 != 0 {
		return nil, corerr.New(corerr.InvalidArgument, "ntag424.aesCBCDecrypt")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "ntag424.aesCBCDecrypt", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesECBEncryptBlock(key, blockIn []byte) ([]byte, error) {
	if len(key) != 16 || len(blockIn) != 16 {
		return nil, corerr.New(corerr.InvalidArgument, "ntag424.aesECBEncryptBlock")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "ntag424.aesECBEncryptBlock", err)
	}
	out := make([]byte, 16)
	block.Encrypt(out, blockIn)
	return out, nil
}

// padISO7816_4 applies ISO/IEC 7816-4 padding: 0x80 then 0x00 fill, always
// adding at least one byte, so padded length = ((len/16)+1)*16.
func padISO7816_4(data []byte) []byte {
	padLen := 16 - (len(data) % 16)
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	out[len(data)] = 0x80
	return out
}

// unpadISO7816_4 strips 0x00 bytes then the mandatory trailing 0x80. A
// missing 0x80 is a DATA_LOSS condition (spec.md section 4.2).
func unpadISO7816_4(data []byte) ([]byte, error) {
	idx := len(data) - 1
	for idx >= 0 && data[idx] == 0x00 {
		idx--
	}
	if idx < 0 || data[idx] != 0x80 {
		return nil, corerr.New(corerr.DataLoss, "ntag424.unpadISO7816_4")
	}
	return data[:idx], nil
}

// rotateLeft1 byte-rotates in by 1 position to the left.
func rotateLeft1(in []byte) []byte {
	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	copy(out, in[1:])
	out[len(in)-1] = in[0]
	return out
}

// rotateRight1 byte-rotates in by 1 position to the right; the inverse of
// rotateLeft1.
func rotateRight1(in []byte) []byte {
	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	out[0] = in[len(in)-1]
	copy(out[1:], in[:len(in)-1])
	return out
}

// verifyRndAPrime is the constant-time equality check between
// rotateLeft1(rndA) and the card/cloud-reported rndAPrime.
func verifyRndAPrime(rndA, rndAPrime []byte) bool {
	want := rotateLeft1(rndA)
	if len(want) != len(rndAPrime) {
		return false
	}
	return subtle.ConstantTimeCompare(want, rndAPrime) == 1
}

func aesCMAC(key, msg []byte) ([]byte, error) {
	if len(key) != 16 {
		return nil, corerr.New(corerr.InvalidArgument, "ntag424.aesCMAC")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "ntag424.aesCMAC", err)
	}
	k1, k2 := generateCMACSubkeys(block)

	n := (len(msg) + 15) / 16
	if n == 0 {
		n = 1
	}
	lastComplete := len(msg) != 0 && len(msg)%16 == 0

	last := make([]byte, 16)
	if lastComplete {
		copy(last, msg[(n-1)*16:])
		xorBlock(last, last, k1)
	} else {
		remain := len(msg) - (n-1)*16
		if remain > 0 {
			copy(last, msg[(n-1)*16:])
		}
		last[remain] = 0x80
		xorBlock(last, last, k2)
	}

	x := make([]byte, 16)
	y := make([]byte, 16)
	for i := 0; i < n-1; i++ {
		blockStart := i * 16
		xorBlock(y, x, msg[blockStart:blockStart+16])
		block.Encrypt(x, y)
	}
	xorBlock(y, x, last)
	block.Encrypt(x, y)
	return x, nil
}

func generateCMACSubkeys(block cipher.Block) (k1, k2 []byte) {
	const rb = 0x87
	zero := make([]byte, 16)
	l := make([]byte, 16)
	block.Encrypt(l, zero)

	k1 = make([]byte, 16)
	leftShift1(k1, l)
	if (l[0] & 0x80) != 0 {
		k1[15] ^= rb
	}

	k2 = make([]byte, 16)
	leftShift1(k2, k1)
	if (k1[0] & 0x80) != 0 {
		k2[15] ^= rb
	}
	return k1, k2
}

func leftShift1(dst, src []byte) {
	var carry byte
	for i := len(src) - 1; i >= 0; i-- {
		b := src[i]
		dst[i] = (b << 1) | carry
		carry = (b >> 7) & 1
	}
}

func xorBlock(dst, a, b []byte) {
	for i := 0; i < len(a) && i < len(b); i++ {
		dst[i] = a[i] ^ b[i]
	}
}

// cmacTruncate picks the 8 bytes of a 16-byte CMAC at odd indices
// (1,3,5,...,15) — the CMACt scheme spec.md section 4.2 requires.
func cmacTruncate(mac []byte) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = mac[1+i*2]
	}
	return out
}

// crc32JamCRC computes CRC-32/JAMCRC (polynomial 0x04C11DB7 reflected to
// 0xEDB88320, init 0xFFFFFFFF, no final XOR) little-endian. This is
// bit-identical to the teacher's CRC32DESFire, renamed to match spec.md's
// crc32_nk vocabulary; used only for ChangeKey payloads on non-auth keys.
func crc32JamCRC(data []byte) [4]byte {
	const poly = uint32(0xEDB88320)
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc = crc >> 1
			}
		}
	}
	var out [4]byte
	out[0] = byte(crc)
	out[1] = byte(crc >> 8)
	out[2] = byte(crc >> 16)
	out[3] = byte(crc >> 24)
	return out
}

// secureZero overwrites buf with zeros. Written as a simple byte loop
// rather than via an unsafe/optimizer-defeating trick: no third-party
// secure-erase primitive exists anywhere in this module's dependency pack,
// so this stdlib-only leaf is deliberate (see DESIGN.md).
func secureZero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
