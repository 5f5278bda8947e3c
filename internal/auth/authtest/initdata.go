// Package authtest provides helpers for constructing signed Telegram
// initData payloads in tests.
package authtest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignInitData builds an initData query string whose hash field is a valid
// WebAppData signature over the given fields.
func SignInitData(botToken string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields))
	for key, val := range fields {
		pairs = append(pairs, key+"="+val)
	}
	sort.Strings(pairs)

	salted := hmac.New(sha256.New, []byte("WebAppData"))
	salted.Write([]byte(botToken))
	secret := salted.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	hash := hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	for key, val := range fields {
		values.Set(key, val)
	}
	values.Set("hash", hash)
	return values.Encode()
}

// UserJSON renders the nested user object for an initData payload.
func UserJSON(id, username, firstName string) string {
	return `{"id":` + id + `,"username":"` + username + `","first_name":"` + firstName + `"}`
}
