package identity

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformedRegUids is returned when persisted registrations are not a JSON object.
var ErrMalformedRegUids = errors.New("malformed registered uid data")

type regEntry struct {
	Uid  string `json:"uid"`
	Type Origin `json:"type"`
}

// parseRegOrigin maps a persisted registration type to an Origin.
// "verify" is the legacy spelling of "verified".
func parseRegOrigin(kind string) (Origin, bool) {
	switch kind {
	case "verified", "verify":
		return OriginVerified, true
	case "reg":
		return OriginManual, true
	default:
		return "", false
	}
}

// DecodeRegUids parses the persisted registration map in document order.
// Entries with an empty uid or a type other than verified/reg are skipped,
// which also drops the credential entries older writers stored alongside.
func DecodeRegUids(raw string) ([]UidBinding, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, ErrMalformedRegUids
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, ErrMalformedRegUids
	}

	var out []UidBinding
	doc.ForEach(func(key, value gjson.Result) bool {
		uid := strings.TrimSpace(key.String())
		if uid == "" {
			return true
		}
		origin, ok := parseRegOrigin(value.Get("type").String())
		if !ok {
			return true
		}
		out = append(out, UidBinding{Uid: uid, Origin: origin})
		return true
	})
	return out, nil
}

// EncodeRegUids writes manual bindings as a JSON object keyed by uid,
// preserving slice order. Non-manual bindings are ignored.
func EncodeRegUids(bindings []UidBinding) (string, error) {
	doc := "{}"
	for _, b := range bindings {
		if !b.Origin.IsManual() || b.Uid == "" {
			continue
		}
		var err error
		doc, err = sjson.Set(doc, objectKeyPath(b.Uid), regEntry{Uid: b.Uid, Type: b.Origin})
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}

// objectKeyPath builds an sjson path that always addresses an object key,
// even for all-digit uids.
func objectKeyPath(key string) string {
	var sb strings.Builder
	sb.WriteByte(':')
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@', ':':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
