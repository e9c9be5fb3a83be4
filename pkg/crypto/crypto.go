/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/config"
)

// AESKeyLen is the required key length (AES-128).
const AESKeyLen = 16

// Crypto provides AES-GCM encryption for columns persisted at rest.
// When crypto is disabled in config, both operations pass data through.
type Crypto struct {
	key []byte
}

var (
	once     sync.Once
	instance *Crypto
)

// NewCrypto creates and returns the singleton Crypto instance. The key is
// read from configuration once; an invalid key leaves the instance nil.
func NewCrypto() *Crypto {
	once.Do(func() {
		key := ""
		if config.IsCryptoEnable() {
			key = config.GetCryptoKey()
			if key == "" {
				klog.Errorf("crypto is enabled but no key is configured")
				return
			}
			if len(key) != AESKeyLen {
				klog.Errorf("invalid crypto key, the length must be %d", AESKeyLen)
				return
			}
		}
		instance = &Crypto{key: []byte(key)}
	})
	return instance
}

// Encrypt encrypts plaintext with AES-GCM and returns a base64 string of
// nonce||ciphertext. Passes data through unchanged when crypto is disabled.
func (c *Crypto) Encrypt(plainText []byte) (string, error) {
	if !config.IsCryptoEnable() {
		return string(plainText), nil
	}
	if len(c.key) == 0 {
		return "", fmt.Errorf("failed to get crypto key")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plainText, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Passes data through unchanged when crypto is disabled.
func (c *Crypto) Decrypt(cipherText string) (string, error) {
	if !config.IsCryptoEnable() {
		return cipherText, nil
	}
	if len(c.key) == 0 {
		return "", fmt.Errorf("failed to get crypto key")
	}
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
