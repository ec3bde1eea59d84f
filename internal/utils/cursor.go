package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// SwitchCursor points at the last role switch of a page, newest first.
type SwitchCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// First-page sentinel for DESC keyset queries: far future + max UUID.
var (
	FirstPageCreatedAt = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	FirstPageID        = "ffffffff-ffff-ffff-ffff-ffffffffffff"
)

func EncodeSwitchCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(SwitchCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeSwitchCursor(cursor string) (SwitchCursor, error) {
	if cursor == "" {
		return SwitchCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return SwitchCursor{}, err
	}

	var c SwitchCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return SwitchCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return SwitchCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
