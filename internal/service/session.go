package service

import (
	"github.com/and161185/phishtrack/internal/crypto"
)

const (
	sessionIDLen      = 24
	sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewSessionID returns a random 24-character alphanumeric identifier.
func NewSessionID() (string, error) {
	out := make([]byte, 0, sessionIDLen)
	// bytes >= 248 are rejected to keep the modulo unbiased (248 = 4*62)
	for len(out) < sessionIDLen {
		buf, err := crypto.RandBytes(sessionIDLen)
		if err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, sessionIDAlphabet[int(b)%len(sessionIDAlphabet)])
			if len(out) == sessionIDLen {
				break
			}
		}
	}
	return string(out), nil
}

// ValidSessionID reports whether s has the shape of a session identifier.
func ValidSessionID(s string) bool {
	if len(s) != sessionIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
