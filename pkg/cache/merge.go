package cache

// Record is a decoded JSON object as returned by the upstream API.
type Record = map[string]any

// MembershipField is the nested object describing the current user's
// relationship to an entity.
const MembershipField = "myMember"

// MergeFunc combines the prior live value with a newly written one.
type MergeFunc[T any] func(old, new T) T

// MergeSkipNull returns a shallow copy of old overwritten by every field of
// new that is not nil. A nil field in new means "unknown", never "cleared".
func MergeSkipNull(old, new Record) Record {
	merged := make(Record, len(old)+len(new))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range new {
		if v != nil {
			merged[k] = v
		}
	}
	return merged
}

// MergeWithMembership applies MergeSkipNull and then merges the membership
// sub-object one level deep by the same rule when both sides carry one.
func MergeWithMembership(old, new Record) Record {
	merged := MergeSkipNull(old, new)

	oldMember, ok := asRecord(old[MembershipField])
	if !ok {
		return merged
	}
	newMember, ok := asRecord(new[MembershipField])
	if !ok {
		return merged
	}
	merged[MembershipField] = MergeSkipNull(oldMember, newMember)
	return merged
}

func asRecord(v any) (Record, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}
