package encryption

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// RecordMagic prefixes every serialised record
	RecordMagic   = "ENVR"
	RecordVersion = 1

	// magic + version + nonce + aad length + key length + ciphertext length
	recordHeaderSize = len(RecordMagic) + 1 + NonceSize + 2 + 2 + 4
)

// MarshalBinary serialises the record as
//
//	magic "ENVR" | version u8 | nonce [12] | aadLen u16 | aad | keyLen u16 | encryptedKey | ctLen u32 | ciphertext
//
// with big-endian lengths.
func (r *EncryptedRecord) MarshalBinary() ([]byte, error) {
	if len(r.AAD) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: associated data too long (%d bytes)", ErrInvalidRecord, len(r.AAD))
	}
	if len(r.EncryptedKey) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: encrypted key too long (%d bytes)", ErrInvalidRecord, len(r.EncryptedKey))
	}
	if uint64(len(r.Ciphertext)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: ciphertext too long (%d bytes)", ErrInvalidRecord, len(r.Ciphertext))
	}

	buf := make([]byte, 0, recordHeaderSize+len(r.AAD)+len(r.EncryptedKey)+len(r.Ciphertext))
	buf = append(buf, RecordMagic...)
	buf = append(buf, RecordVersion)
	buf = append(buf, r.Nonce[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.AAD)))
	buf = append(buf, r.AAD...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.EncryptedKey)))
	buf = append(buf, r.EncryptedKey...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Ciphertext)))
	buf = append(buf, r.Ciphertext...)

	return buf, nil
}

// UnmarshalBinary parses a record written by MarshalBinary. The record does
// not alias data.
func (r *EncryptedRecord) UnmarshalBinary(data []byte) error {
	if len(data) < recordHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidRecord, len(data))
	}
	if string(data[:len(RecordMagic)]) != RecordMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidRecord)
	}
	data = data[len(RecordMagic):]

	if data[0] != RecordVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidRecord, data[0])
	}
	data = data[1:]

	var nonce [NonceSize]byte
	copy(nonce[:], data[:NonceSize])
	data = data[NonceSize:]

	aad, data, err := readField(data, 2)
	if err != nil {
		return fmt.Errorf("%w: associated data: %v", ErrInvalidRecord, err)
	}

	encryptedKey, data, err := readField(data, 2)
	if err != nil {
		return fmt.Errorf("%w: encrypted key: %v", ErrInvalidRecord, err)
	}

	ciphertext, data, err := readField(data, 4)
	if err != nil {
		return fmt.Errorf("%w: ciphertext: %v", ErrInvalidRecord, err)
	}

	if len(data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidRecord, len(data))
	}

	*r = EncryptedRecord{
		Ciphertext:   ciphertext,
		EncryptedKey: encryptedKey,
		Nonce:        nonce,
		AAD:          aad,
	}
	return nil
}

// readField reads a big-endian length prefix of prefixSize bytes followed by
// that many bytes, returning a copy of the field and the remaining input.
func readField(data []byte, prefixSize int) ([]byte, []byte, error) {
	if len(data) < prefixSize {
		return nil, nil, fmt.Errorf("missing length prefix")
	}

	var n uint64
	switch prefixSize {
	case 2:
		n = uint64(binary.BigEndian.Uint16(data))
	case 4:
		n = uint64(binary.BigEndian.Uint32(data))
	default:
		return nil, nil, fmt.Errorf("unsupported prefix size %d", prefixSize)
	}
	data = data[prefixSize:]

	if uint64(len(data)) < n {
		return nil, nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, len(data))
	}

	field := make([]byte, n)
	copy(field, data[:n])
	return field, data[n:], nil
}
