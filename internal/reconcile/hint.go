package reconcile

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// HintCookie carries the navigation hint between checkout and the result page.
const HintCookie = "checkout_state"

var errEmptyResponse = errors.New("verification returned no body")

// EncodeHint renders h as a cookie-safe value.
func EncodeHint(h Hint) (string, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeHint parses a cookie value. A malformed value yields nil: the hint is
// optional and never authoritative.
func DecodeHint(value string) *Hint {
	if value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var h Hint
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil
	}
	return &h
}
