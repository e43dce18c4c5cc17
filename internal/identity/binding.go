package identity

// Origin tells where a UID binding came from.
type Origin string

const (
	// OriginCredential UIDs are reported by a bound cookie and are ground truth.
	OriginCredential Origin = "ck"
	// OriginVerified UIDs were registered after an ownership check.
	OriginVerified Origin = "verified"
	// OriginManual UIDs were self-declared by the user.
	OriginManual Origin = "reg"
)

// IsManual reports whether the binding is owned by the user rather than a cookie.
func (o Origin) IsManual() bool {
	return o == OriginVerified || o == OriginManual
}

// UidBinding is one indexed UID. OwnerID is set only for credential origin.
type UidBinding struct {
	Uid     string `json:"uid"`
	Origin  Origin `json:"type"`
	OwnerID string `json:"ltuid,omitempty"`
}
