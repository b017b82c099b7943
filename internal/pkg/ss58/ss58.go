// Package ss58 encodes and decodes SS58 account addresses for 32-byte
// public keys.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// PublicKeyLength is the size of an sr25519/ed25519 account id.
const PublicKeyLength = 32

const checksumLength = 2

// MaxPrefix is the largest network identifier that fits the two-byte form.
const MaxPrefix = 16383

var checksumPreimage = []byte("SS58PRE")

var (
	ErrInvalidEncoding = errors.New("ss58: invalid base58 encoding")
	ErrInvalidLength   = errors.New("ss58: invalid address length")
	ErrInvalidPrefix   = errors.New("ss58: invalid network prefix")
	ErrInvalidChecksum = errors.New("ss58: checksum mismatch")
)

// Encode returns the SS58 address of publicKey on the network identified by prefix.
func Encode(publicKey []byte, prefix uint16) (string, error) {
	if len(publicKey) != PublicKeyLength {
		return "", fmt.Errorf("%w: public key is %d bytes", ErrInvalidLength, len(publicKey))
	}
	header, err := encodePrefix(prefix)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(header)+PublicKeyLength+checksumLength)
	payload = append(payload, header...)
	payload = append(payload, publicKey...)
	sum := checksum(payload)
	payload = append(payload, sum[:checksumLength]...)

	return base58.Encode(payload), nil
}

// Decode returns the public key and network prefix encoded in address.
func Decode(address string) ([]byte, uint16, error) {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) == 0 {
		return nil, 0, ErrInvalidEncoding
	}

	var prefix uint16
	var headerLen int
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
		headerLen = 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return nil, 0, ErrInvalidLength
		}
		lower := (raw[0]&0x3f)<<2 | raw[1]>>6
		upper := raw[1] & 0x3f
		prefix = uint16(lower) | uint16(upper)<<8
		headerLen = 2
	default:
		return nil, 0, fmt.Errorf("%w: leading byte %#x", ErrInvalidPrefix, raw[0])
	}

	if len(raw) != headerLen+PublicKeyLength+checksumLength {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(raw))
	}

	body := raw[:headerLen+PublicKeyLength]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLength], raw[headerLen+PublicKeyLength:]) {
		return nil, 0, ErrInvalidChecksum
	}

	publicKey := make([]byte, PublicKeyLength)
	copy(publicKey, raw[headerLen:headerLen+PublicKeyLength])
	return publicKey, prefix, nil
}

func encodePrefix(prefix uint16) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix <= MaxPrefix:
		first := byte((prefix&0xfc)>>2) | 0x40
		second := byte(prefix>>8) | byte(prefix&0x03)<<6
		return []byte{first, second}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidPrefix, prefix)
	}
}

func checksum(payload []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(checksumPreimage)+len(payload))
	buf = append(buf, checksumPreimage...)
	buf = append(buf, payload...)
	return blake2b.Sum512(buf)
}
