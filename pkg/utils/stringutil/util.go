/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// TokenAlphabet is the unreserved URL-safe alphabet used for every opaque
// identifier the system hands out (key ids, secrets, magic-link tokens, job ids).
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

var (
	rxName   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	rxDomain = regexp.MustCompile(`^[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// RandomToken returns a cryptographically random string of the given length
// drawn from TokenAlphabet.
func RandomToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length %d", length)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = TokenAlphabet[int(b)%len(TokenAlphabet)]
	}
	return string(buf), nil
}

// IsValidName reports whether s is a legal environment or volume name
// (alphanumerics, hyphen, underscore).
func IsValidName(s string) bool {
	return s != "" && rxName.MatchString(s)
}

// IsValidDomain reports whether s looks like a fully qualified domain name.
func IsValidDomain(s string) bool {
	return s != "" && rxDomain.MatchString(s)
}

// Split splits a string by the given separator and trims whitespace from each part.
func Split(str, sep string) []string {
	if len(str) == 0 {
		return nil
	}
	strList := strings.Split(str, sep)
	var result []string
	for _, s := range strList {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		result = append(result, s)
	}
	return result
}

// Truncate bounds s to max bytes without splitting the trailing rune group.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
