package meta

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// KID is a 13-character platform identifier: a 3-character kind prefix
// followed by a 10-character lowercase hex suffix. Types, fields, records
// and report definitions all carry KIDs.
type KID string

// Kind prefixes for platform-owned entities. Record KIDs use the key prefix
// of their type instead.
const (
	TypeKIDPrefix       = "002"
	FieldKIDPrefix      = "003"
	ReportTypeKIDPrefix = "00r"
)

const kidLen = 13

// NewKID mints a KID with the given 3-character prefix.
func NewKID(prefix string) KID {
	u := uuid.New()
	return KID(prefix + hex.EncodeToString(u[:5]))
}

// ParseKID validates the textual form of a KID.
func ParseKID(s string) (KID, error) {
	if len(s) != kidLen {
		return "", fmt.Errorf("invalid KID %q: must be %d characters", s, kidLen)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", fmt.Errorf("invalid KID %q: illegal character %q", s, r)
		}
	}
	return KID(s), nil
}

// Prefix returns the 3-character kind prefix of the KID.
func (k KID) Prefix() string {
	if len(k) < 3 {
		return ""
	}
	return string(k[:3])
}

func (k KID) String() string { return string(k) }
