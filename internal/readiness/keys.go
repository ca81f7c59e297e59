package readiness

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityKind tags a UI key with the entity family it addresses.
type EntityKind byte

const (
	KindCheck    EntityKind = 'c'
	KindDomain   EntityKind = 'd'
	KindApproval EntityKind = 'a'
	KindEvidence EntityKind = 'e'
)

// UIKey renders the prefixed presentation key for an entity, e.g. "c42".
// These keys exist only at the edge; storage and the engine work with
// plain integer ids.
func UIKey(kind EntityKind, id int64) string {
	return fmt.Sprintf("%c%d", kind, id)
}

// ParseUIKey decodes a prefixed key strictly: a single known prefix letter
// followed by a positive decimal id, nothing else.
func ParseUIKey(key string) (EntityKind, int64, error) {
	if len(key) < 2 {
		return 0, 0, ValidationError{Field: "key", Reason: "too short"}
	}
	kind := EntityKind(key[0])
	switch kind {
	case KindCheck, KindDomain, KindApproval, KindEvidence:
	default:
		return 0, 0, ValidationError{Field: "key", Reason: fmt.Sprintf("unknown prefix %q", key[0])}
	}
	rest := key[1:]
	if strings.HasPrefix(rest, "+") || strings.HasPrefix(rest, "-") {
		return 0, 0, ValidationError{Field: "key", Reason: "id must be a positive integer"}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, ValidationError{Field: "key", Reason: "id must be a positive integer"}
	}
	return kind, id, nil
}
