package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Per-entity lifetimes and bounds.
const (
	UserTTL     = 5 * time.Minute
	GroupTTL    = 10 * time.Minute
	InstanceTTL = time.Minute
	WorldTTL    = time.Hour
	MemberTTL   = 2 * time.Minute
	RequestTTL  = time.Minute
	BanTTL      = 2 * time.Minute

	MaxUsers        = 500
	MaxGroups       = 50
	MaxInstances    = 50
	MaxWorlds       = 100
	MaxMemberPages  = 20
	MaxJoinRequests = 20
	MaxBans         = 20

	// DefaultCleanupInterval is how often RunCleanup sweeps every cache.
	DefaultCleanupInterval = time.Minute
)

// Stats holds the live entry count of every cache.
type Stats struct {
	Users        int `json:"users"`
	Groups       int `json:"groups"`
	Instances    int `json:"instances"`
	Worlds       int `json:"worlds"`
	GroupMembers int `json:"group_members"`
	JoinRequests int `json:"join_requests"`
	GroupBans    int `json:"group_bans"`
}

// Total returns the sum over all caches.
func (s Stats) Total() int {
	return s.Users + s.Groups + s.Instances + s.Worlds + s.GroupMembers + s.JoinRequests + s.GroupBans
}

// Manager owns the seven entity caches and the groups snapshot.
// It is created once at startup and reset with ClearAll on logout.
type Manager struct {
	Users        *EntityCache[Record]
	Groups       *EntityCache[Record]
	Instances    *EntityCache[[]Record]
	Worlds       *EntityCache[Record]
	GroupMembers *EntityCache[[]Record]
	JoinRequests *EntityCache[[]Record]
	GroupBans    *EntityCache[[]Record]

	store  SnapshotStore
	logger zerolog.Logger
}

// NewManager creates the caches. store may be nil, in which case Save and
// Load do nothing.
func NewManager(store SnapshotStore, logger zerolog.Logger) *Manager {
	m := &Manager{
		Users: NewEntityCache(EntityConfig[Record]{
			Name: "users", DefaultTTL: UserTTL, MaxEntries: MaxUsers, Merge: MergeWithMembership,
		}),
		Groups: NewEntityCache(EntityConfig[Record]{
			Name: "groups", DefaultTTL: GroupTTL, MaxEntries: MaxGroups, Merge: MergeWithMembership,
		}),
		Instances: NewEntityCache(EntityConfig[[]Record]{
			Name: "instances", DefaultTTL: InstanceTTL, MaxEntries: MaxInstances,
		}),
		Worlds: NewEntityCache(EntityConfig[Record]{
			Name: "worlds", DefaultTTL: WorldTTL, MaxEntries: MaxWorlds,
		}),
		GroupMembers: NewEntityCache(EntityConfig[[]Record]{
			Name: "group_members", DefaultTTL: MemberTTL, MaxEntries: MaxMemberPages,
		}),
		JoinRequests: NewEntityCache(EntityConfig[[]Record]{
			Name: "join_requests", DefaultTTL: RequestTTL, MaxEntries: MaxJoinRequests,
		}),
		GroupBans: NewEntityCache(EntityConfig[[]Record]{
			Name: "group_bans", DefaultTTL: BanTTL, MaxEntries: MaxBans,
		}),
		store:  store,
		logger: logger,
	}
	m.logger.Info().Bool("persistence", store != nil).Msg("Cache manager initialized")
	return m
}

// CleanupAll sweeps expired entries from every cache and returns how many
// were removed.
func (m *Manager) CleanupAll() int {
	removed := m.Users.CleanupExpired() +
		m.Groups.CleanupExpired() +
		m.Instances.CleanupExpired() +
		m.Worlds.CleanupExpired() +
		m.GroupMembers.CleanupExpired() +
		m.JoinRequests.CleanupExpired() +
		m.GroupBans.CleanupExpired()
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Msg("Cleaned up expired cache entries")
	}
	return removed
}

// ClearAll empties every cache.
func (m *Manager) ClearAll() {
	m.Users.Clear()
	m.Groups.Clear()
	m.Instances.Clear()
	m.Worlds.Clear()
	m.GroupMembers.Clear()
	m.JoinRequests.Clear()
	m.GroupBans.Clear()
	m.logger.Info().Msg("All caches cleared")
}

// Stats returns live entry counts.
func (m *Manager) Stats() Stats {
	return Stats{
		Users:        m.Users.Len(),
		Groups:       m.Groups.Len(),
		Instances:    m.Instances.Len(),
		Worlds:       m.Worlds.Len(),
		GroupMembers: m.GroupMembers.Len(),
		JoinRequests: m.JoinRequests.Len(),
		GroupBans:    m.GroupBans.Len(),
	}
}

// RunCleanup calls CleanupAll every interval until ctx is done.
// A non-positive interval uses DefaultCleanupInterval.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupAll()
		}
	}
}

// InvalidateJoinRequests drops a group's cached join requests.
func (m *Manager) InvalidateJoinRequests(groupID string) {
	m.JoinRequests.Invalidate(JoinRequestsKey(groupID))
	m.logger.Debug().Str("group", groupID).Msg("Invalidated join requests cache")
}

// InvalidateBans drops a group's cached bans.
func (m *Manager) InvalidateBans(groupID string) {
	m.GroupBans.Invalidate(BansKey(groupID))
	m.logger.Debug().Str("group", groupID).Msg("Invalidated bans cache")
}

// InvalidateMembers drops every cached member page of a group.
func (m *Manager) InvalidateMembers(groupID string) {
	n := m.GroupMembers.InvalidatePrefix(MembersPrefix(groupID))
	m.logger.Debug().Str("group", groupID).Int("pages", n).Msg("Invalidated members cache")
}

// InvalidateInstances drops a group's cached instances.
func (m *Manager) InvalidateInstances(groupID string) {
	m.Instances.Invalidate(InstancesKey(groupID))
	m.logger.Debug().Str("group", groupID).Msg("Invalidated instances cache")
}

// InvalidateGroup drops the group itself and everything cached for it.
func (m *Manager) InvalidateGroup(groupID string) {
	m.InvalidateJoinRequests(groupID)
	m.InvalidateBans(groupID)
	m.InvalidateMembers(groupID)
	m.InvalidateInstances(groupID)
	m.Groups.Invalidate(groupID)
	m.logger.Debug().Str("group", groupID).Msg("Invalidated all caches for group")
}

// InvalidateMyGroups drops the cached group list of a user.
func (m *Manager) InvalidateMyGroups(userID string) {
	if userID == "" {
		return
	}
	m.Groups.Invalidate(MyGroupsKey(userID))
	m.logger.Debug().Str("user", userID).Msg("Invalidated my groups cache")
}

// Save writes the live groups to the snapshot store. Persistence is a
// warm-start aid: callers may log and ignore the error.
func (m *Manager) Save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	snap := Snapshot{
		Groups:  m.Groups.Items(),
		SavedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		SnapshotOperations.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := m.store.Write(ctx, data); err != nil {
		SnapshotOperations.WithLabelValues("save", "error").Inc()
		m.logger.Warn().Err(err).Msg("Failed to save cache snapshot")
		return err
	}

	SnapshotOperations.WithLabelValues("save", "ok").Inc()
	m.logger.Debug().Int("groups", len(snap.Groups)).Msg("Saved cache snapshot")
	return nil
}

// Load re-inserts the snapshot's groups with a fresh TTL and returns how
// many were loaded. A missing snapshot loads nothing and is not an error.
func (m *Manager) Load(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}

	data, err := m.store.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			SnapshotOperations.WithLabelValues("load", "missing").Inc()
			return 0, nil
		}
		SnapshotOperations.WithLabelValues("load", "error").Inc()
		m.logger.Warn().Err(err).Msg("Failed to read cache snapshot")
		return 0, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		SnapshotOperations.WithLabelValues("load", "error").Inc()
		m.logger.Warn().Err(err).Msg("Failed to decode cache snapshot")
		return 0, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	loaded := 0
	for id, group := range snap.Groups {
		if group == nil {
			continue
		}
		m.Groups.Set(id, group)
		loaded++
	}

	SnapshotOperations.WithLabelValues("load", "ok").Inc()
	m.logger.Info().
		Int("groups", loaded).
		Time("saved_at", snap.SavedAt).
		Msg("Loaded groups from cache snapshot")
	return loaded, nil
}
