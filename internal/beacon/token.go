// Package beacon decodes deaddrop call-in tokens.
//
// A token is base64 text wrapping a chained-XOR encoded JSON document. The
// first encoded byte is the seed; every following byte is the plaintext byte
// XORed with the previous encoded byte.
package beacon

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/phishtrack/internal/errs"
)

// Record is the decoded call-in payload.
type Record struct {
	DeploymentID     string
	LocalUsername    string
	LocalHostname    string
	LocalIPAddresses string // space separated
}

// Complete reports whether the fields required to store a connection are set.
func (r Record) Complete() bool {
	return r.DeploymentID != "" && r.LocalUsername != "" && r.LocalHostname != ""
}

type wireRecord struct {
	DeaddropID       string          `json:"deaddrop_id"`
	LocalUsername    string          `json:"local_username"`
	LocalHostname    string          `json:"local_hostname"`
	LocalIPAddresses json.RawMessage `json:"local_ip_addresses,omitempty"`
}

// Decode turns a token into a Record. Any failure wraps errs.ErrMalformedToken.
func Decode(token string) (Record, error) {
	raw, err := decodeBase64(strings.TrimSpace(token))
	if err != nil {
		return Record{}, fmt.Errorf("%w: base64: %v", errs.ErrMalformedToken, err)
	}
	plain, err := xorDecode(raw)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", errs.ErrMalformedToken, err)
	}
	var w wireRecord
	if err := json.Unmarshal(plain, &w); err != nil {
		return Record{}, fmt.Errorf("%w: json: %v", errs.ErrMalformedToken, err)
	}
	ips, err := joinAddresses(w.LocalIPAddresses)
	if err != nil {
		return Record{}, fmt.Errorf("%w: local_ip_addresses: %v", errs.ErrMalformedToken, err)
	}
	return Record{
		DeploymentID:     w.DeaddropID,
		LocalUsername:    w.LocalUsername,
		LocalHostname:    w.LocalHostname,
		LocalIPAddresses: ips,
	}, nil
}

// Encode builds a token for r using seed as the XOR key. Used by tests and the token helper.
func Encode(r Record, seed byte) (string, error) {
	w := wireRecord{DeaddropID: r.DeploymentID, LocalUsername: r.LocalUsername, LocalHostname: r.LocalHostname}
	if r.LocalIPAddresses != "" {
		b, err := json.Marshal(strings.Fields(r.LocalIPAddresses))
		if err != nil {
			return "", err
		}
		w.LocalIPAddresses = b
	}
	plain, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(xorEncode(plain, seed)), nil
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty token")
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	// query strings turn '+' into ' '
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(s, " ", "+"))
}

func xorDecode(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("xor: payload too short (%d bytes)", len(data))
	}
	key := data[0]
	out := make([]byte, 0, len(data)-1)
	for _, b := range data[1:] {
		out = append(out, b^key)
		key = b
	}
	return out, nil
}

func xorEncode(data []byte, seed byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, seed)
	key := seed
	for _, b := range data {
		e := b ^ key
		out = append(out, e)
		key = e
	}
	return out
}

// joinAddresses accepts a JSON string, a list of strings, or nothing.
func joinAddresses(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " "), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
