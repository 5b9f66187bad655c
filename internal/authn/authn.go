// Package authn verifies operator credentials. Verification runs in a
// separate worker process reached over gRPC on a unix socket, so password
// material and hashing cost stay out of the request-serving process.
package authn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/and161185/phishtrack/internal/crypto"
)

// Authenticator checks a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

// FileStore authenticates against a users file of "username:<argon2id PHC hash>"
// lines. Blank lines and lines starting with '#' are ignored.
type FileStore struct {
	users map[string]string
}

// LoadFile reads a users file.
func LoadFile(path string) (*FileStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseUsers(f)
}

// ParseUsers reads users file content.
func ParseUsers(r io.Reader) (*FileStore, error) {
	s := &FileStore{users: map[string]string{}}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, hash, ok := strings.Cut(text, ":")
		if !ok || name == "" || !strings.HasPrefix(hash, "$argon2id$") {
			return nil, fmt.Errorf("users file line %d: want username:$argon2id$...", line)
		}
		s.users[name] = hash
	}
	return s, sc.Err()
}

// Authenticate verifies the password of a known user. Unknown users fail without error.
func (s *FileStore) Authenticate(_ context.Context, username, password string) (bool, error) {
	hash, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return crypto.VerifyPassword(password, hash)
}

// Len reports the number of known users.
func (s *FileStore) Len() int { return len(s.users) }

// FormatEntry returns a users file line for username with a freshly hashed password.
func FormatEntry(username, password string) (string, error) {
	if username == "" || strings.Contains(username, ":") {
		return "", fmt.Errorf("invalid username %q", username)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return "", err
	}
	return username + ":" + hash, nil
}
