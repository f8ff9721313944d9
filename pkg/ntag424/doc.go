/*
Package ntag424 implements the NTAG424 DNA secure channel: APDU framing,
AuthenticateEV2First mutual authentication, session-key derivation, and the
secure-messaging wrapper around the authenticated operations GetCardUid,
ReadData, WriteData, and ChangeKey.

# Communication Modes

Each file operation runs in one of three communication modes:

	Plain: no security, cleartext data, command counter still advances.
	MAC:   cleartext data with an 8-byte truncated CMAC for integrity.
	Full:  AES-CBC encrypted data plus a CMAC, requires an active session.

# AuthenticateEV2First (INS 0x71 + 0xAF)

Two-phase handshake:

	Phase 1:  90 71 00 00 02 <keyNo> 00 00  ->  EncRndB(16), SW=91AF
	Phase 2:  90 AF 00 00 20 Enc(RndA||RotateLeft(RndB))(32)  ->  Enc(TI||RndA'||PICCcaps||filler)(32), SW=9100

RndA' is RotateLeft(RndA); TI is 4 bytes and PICCcaps 6 bytes.

Session keys are derived from two session vectors:

	SV1 = A5 5A 00 01 00 80 || rndA[0:2] || (rndA[2:8] XOR rndB[0:6]) || rndB[6:16] || rndA[8:16]
	SV2 = 5A A5 00 01 00 80 || (same fill)
	EncKey = AES-CMAC(authKey, SV1)
	MacKey = AES-CMAC(authKey, SV2)

A KeyProvider performs the Part 2/Part 3 cryptography on behalf of the
caller, so the raw authentication key never has to pass through Tag itself;
pkg/keyprovider supplies the Local and Cloud implementations.

# Status words

	SW=9000  Success (ISO)
	SW=9100  Success (DESFire)
	SW=91AF  Additional frame / chaining required (not implemented — Unimplemented)
	SW=911C  Illegal command (InvalidArgument)
	SW=911E  Integrity error (DataLoss)
	SW=9140  No such key (NotFound)
	SW=917E  Length error (InvalidArgument)
	SW=919D  Permission denied (PermissionDenied)
	SW=919E  Parameter error (InvalidArgument)
	SW=91AE  Authentication error (Unauthenticated)
	SW=91BE  Out of range (OutOfRange)
	SW=91CA  Command aborted (Aborted)
	SW=91EE  Memory error (Internal)

SelectApplication invalidates any active session; always select before
authenticating.
*/
package ntag424
