package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// blockSize is the AES block size, also used for PKCS#7 padding.
const blockSize = 16

// aesCipher encrypts and decrypts payload bodies with AES-ECB and PKCS#7
// padding. ECB is what the Tuya v3.3 protocol uses; there is no IV.
type aesCipher struct {
	block cipher.Block
}

func newAESCipher(key []byte) (*aesCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &aesCipher{block: block}, nil
}

// encrypt pads and encrypts s. Empty input is returned as is.
func (c *aesCipher) encrypt(s []byte) []byte {
	if len(s) == 0 {
		return s
	}
	padded := pad(s)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += blockSize {
		c.block.Encrypt(out[i:i+blockSize], padded[i:i+blockSize])
	}
	return out
}

// decrypt decrypts and unpads s. Empty input is returned as is.
func (c *aesCipher) decrypt(s []byte) ([]byte, error) {
	if len(s) == 0 {
		return s, nil
	}
	if len(s)%blockSize != 0 {
		return nil, fmt.Errorf("length %d should be a multiple of %d", len(s), blockSize)
	}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i += blockSize {
		c.block.Decrypt(out[i:i+blockSize], s[i:i+blockSize])
	}
	return unpad(out)
}

func pad(s []byte) []byte {
	n := blockSize - len(s)%blockSize
	return append(s, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(s []byte) ([]byte, error) {
	n := int(s[len(s)-1])
	if n == 0 || n > blockSize || n > len(s) {
		return nil, fmt.Errorf("invalid padding length %d", n)
	}
	for _, b := range s[len(s)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding byte %#x", b)
		}
	}
	return s[:len(s)-n], nil
}
