// Package payfast implements the PayFast callback signature scheme, callback
// parsing and checkout link construction.
package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignatureField holds the digest in both callbacks and checkout links.
const SignatureField = "signature"

type param struct {
	key   string
	value string
}

// Verify reports whether payload carries a signature matching the digest of
// its remaining non-empty fields. A missing signature never verifies.
func Verify(payload map[string]string, passphrase string) bool {
	expected := strings.TrimSpace(payload[SignatureField])
	if expected == "" {
		return false
	}
	actual := Sign(payload, passphrase)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(expected)), []byte(actual)) == 1
}

// Sign returns the lowercase hex MD5 digest of payload with keys in
// lexicographic order.
func Sign(payload map[string]string, passphrase string) string {
	return digest(sortedParams(payload), passphrase)
}

// SignatureBase returns the exact string that Sign hashes.
func SignatureBase(payload map[string]string, passphrase string) string {
	return encode(sortedParams(payload), passphrase)
}

func sortedParams(payload map[string]string) []param {
	params := make([]param, 0, len(payload))
	for k, v := range payload {
		if k == SignatureField {
			continue
		}
		params = append(params, param{key: k, value: v})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].key < params[j].key })
	return params
}

func digest(params []param, passphrase string) string {
	sum := md5.Sum([]byte(encode(params, passphrase)))
	return hex.EncodeToString(sum[:])
}

// encode builds key=value pairs joined by '&', dropping empty values.
// url.QueryEscape encodes spaces as '+'.
func encode(params []param, passphrase string) string {
	var b strings.Builder
	for _, p := range params {
		v := strings.TrimSpace(p.value)
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	if pp := strings.TrimSpace(passphrase); pp != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString("passphrase=")
		b.WriteString(url.QueryEscape(pp))
	}
	return b.String()
}
