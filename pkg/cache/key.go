package cache

import (
	"fmt"
)

// Keys for list-valued caches. Entity caches (users, groups, worlds) are
// keyed by the upstream ID directly.

// InstancesKey returns the instances cache key for a group.
func InstancesKey(groupID string) string {
	return "instances_" + groupID
}

// JoinRequestsKey returns the join requests cache key for a group.
func JoinRequestsKey(groupID string) string {
	return "requests_" + groupID
}

// BansKey returns the bans cache key for a group.
func BansKey(groupID string) string {
	return "bans_" + groupID
}

// MembersKey returns the cache key for one page of a group's members.
//
// Format: members_<group>_<limit>_<offset>
//
// Example:
//
//	members_grp_123_50_100
func MembersKey(groupID string, limit, offset int) string {
	return fmt.Sprintf("%s%d_%d", MembersPrefix(groupID), limit, offset)
}

// MembersPrefix matches every member page cached for a group and nothing
// cached for another group whose ID shares a prefix.
func MembersPrefix(groupID string) string {
	return "members_" + groupID + "_"
}

// MyGroupsKey returns the groups cache key holding a user's own group list.
func MyGroupsKey(userID string) string {
	return "my_groups_" + userID
}
