package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// telegramSecretSalt is the fixed key Telegram uses to derive the
	// mini-app secret from the bot token.
	// https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
	telegramSecretSalt = "WebAppData"

	// futureSkew tolerates minor clock drift on auth_date.
	futureSkew = time.Minute
)

// TelegramUser carries the validated fields from the nested "user" object.
// ID stays a string: Telegram ids are 64-bit integers and must never pass
// through a float-typed JSON stage.
type TelegramUser struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
}

// TelegramVerifier validates mini-app initData payloads.
// Verification is a pure function over the payload, the bot token and the
// clock; it performs no I/O.
type TelegramVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTelegramVerifier derives the verification secret from the bot token.
func NewTelegramVerifier(botToken string, maxAge time.Duration) *TelegramVerifier {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	salted := hmac.New(sha256.New, []byte(telegramSecretSalt))
	salted.Write([]byte(botToken))
	return &TelegramVerifier{
		secret: salted.Sum(nil),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (v *TelegramVerifier) WithClock(now func() time.Time) *TelegramVerifier {
	v.now = now
	return v
}

// Verify checks the HMAC signature and freshness of a raw initData string and
// returns the embedded Telegram user. Every failure mode returns
// ErrInitDataInvalid; callers cannot distinguish a forged hash from a stale
// or garbled payload.
func (v *TelegramVerifier) Verify(initData string) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInitDataInvalid
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, ErrInitDataInvalid
	}
	provided, err := hex.DecodeString(providedHash)
	if err != nil {
		return nil, ErrInitDataInvalid
	}

	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		if key == "hash" {
			continue
		}
		for _, val := range vals {
			pairs = append(pairs, key+"="+val)
		}
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	if !hmac.Equal(mac.Sum(nil), provided) {
		return nil, ErrInitDataInvalid
	}

	authDateRaw := values.Get("auth_date")
	if authDateRaw == "" {
		return nil, ErrInitDataInvalid
	}
	authDateUnix, err := strconv.ParseInt(authDateRaw, 10, 64)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	authDate := time.Unix(authDateUnix, 0)
	now := v.now()
	if now.Sub(authDate) > v.maxAge || authDate.After(now.Add(futureSkew)) {
		return nil, ErrInitDataInvalid
	}

	user, err := parseTelegramUser(values.Get("user"))
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	return user, nil
}

type telegramUserPayload struct {
	ID        json.Number `json:"id"`
	Username  string      `json:"username"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
}

func parseTelegramUser(raw string) (*TelegramUser, error) {
	if raw == "" {
		return nil, ErrInitDataInvalid
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var payload telegramUserPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.ID.String() == "" {
		return nil, ErrInitDataInvalid
	}
	if _, err := payload.ID.Int64(); err != nil {
		return nil, err
	}
	return &TelegramUser{
		ID:        payload.ID.String(),
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	}, nil
}
