package accessor

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/vrc-api-client/pkg/cache"
	"github.com/Sternrassler/vrc-api-client/pkg/client"
	"github.com/Sternrassler/vrc-api-client/pkg/logging"
	"github.com/Sternrassler/vrc-api-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// myGroupsField holds a user's group list inside its groups cache record.
const myGroupsField = "groups"

// Accessor serves entity reads from the cache manager and routes writes
// through the dispatcher.
type Accessor struct {
	d      Dispatcher
	cache  *cache.Manager
	logger zerolog.Logger
}

// New creates an accessor over d and m.
func New(d Dispatcher, m *cache.Manager) *Accessor {
	return &Accessor{
		d:      d,
		cache:  m,
		logger: logging.NewLogger("accessor"),
	}
}

// Cache returns the underlying cache manager.
func (a *Accessor) Cache() *cache.Manager {
	return a.cache
}

// User returns a user record, or nil if the user does not exist.
func (a *Accessor) User(ctx context.Context, userID string, force bool) (cache.Record, error) {
	return Load(ctx, a.cache.Users, userID, force, a.record("/users/"+url.PathEscape(userID)))
}

// Group returns a group record, or nil if the group is not visible.
func (a *Accessor) Group(ctx context.Context, groupID string, force bool) (cache.Record, error) {
	return Load(ctx, a.cache.Groups, groupID, force, a.record("/groups/"+url.PathEscape(groupID)))
}

// World returns a world record, or nil if the world does not exist.
func (a *Accessor) World(ctx context.Context, worldID string, force bool) (cache.Record, error) {
	return Load(ctx, a.cache.Worlds, worldID, force, a.record("/worlds/"+url.PathEscape(worldID)))
}

// GroupInstances returns the open instances of a group.
func (a *Accessor) GroupInstances(ctx context.Context, groupID string, force bool) ([]cache.Record, error) {
	return Load(ctx, a.cache.Instances, cache.InstancesKey(groupID), force,
		a.list(groupPath(groupID, "instances"), nil))
}

// JoinRequests returns the pending join requests of a group.
func (a *Accessor) JoinRequests(ctx context.Context, groupID string, force bool) ([]cache.Record, error) {
	return Load(ctx, a.cache.JoinRequests, cache.JoinRequestsKey(groupID), force,
		a.list(groupPath(groupID, "requests"), nil))
}

// GroupBans returns the banned members of a group.
func (a *Accessor) GroupBans(ctx context.Context, groupID string, force bool) ([]cache.Record, error) {
	return Load(ctx, a.cache.GroupBans, cache.BansKey(groupID), force,
		a.list(groupPath(groupID, "bans"), nil))
}

// GroupMembers returns one page of a group's members.
func (a *Accessor) GroupMembers(ctx context.Context, groupID string, limit, offset int, force bool) ([]cache.Record, error) {
	if limit <= 0 || limit > pagination.DefaultPageSize {
		limit = pagination.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Load(ctx, a.cache.GroupMembers, cache.MembersKey(groupID, limit, offset), force,
		a.list(groupPath(groupID, "members"), pageQuery(nil, limit, offset)))
}

// AllGroupMembers walks every member page of a group. Pages are not cached.
func (a *Accessor) AllGroupMembers(ctx context.Context, groupID string, cfg pagination.Config) ([]cache.Record, error) {
	members, err := FetchAll(ctx, a.d, groupPath(groupID, "members"), nil, cfg)
	if err != nil {
		a.logger.Warn().Err(err).Str("group", groupID).Int("collected", len(members)).Msg("Member walk stopped early")
	}
	return members, err
}

// MyGroups returns the groups a user belongs to. The list is cached in the
// groups cache under cache.MyGroupsKey.
func (a *Accessor) MyGroups(ctx context.Context, userID string, force bool) ([]cache.Record, error) {
	fetch := a.list("/users/"+url.PathEscape(userID)+"/groups", nil)
	rec, err := Load(ctx, a.cache.Groups, cache.MyGroupsKey(userID), force, func(ctx context.Context) (cache.Record, bool, error) {
		groups, ok, err := fetch(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		return cache.Record{myGroupsField: groups}, true, nil
	})
	if err != nil || rec == nil {
		return nil, err
	}
	return asRecords(rec[myGroupsField]), nil
}

// RespondToJoinRequest accepts or rejects a pending join request.
func (a *Accessor) RespondToJoinRequest(ctx context.Context, groupID, userID string, accept bool) error {
	action := "reject"
	if accept {
		action = "accept"
	}
	endpoint := groupPath(groupID, "requests") + "/" + url.PathEscape(userID)
	if err := a.mutate(ctx, http.MethodPut, endpoint, map[string]string{"action": action}); err != nil {
		return err
	}

	a.cache.InvalidateJoinRequests(groupID)
	if accept {
		a.cache.InvalidateMembers(groupID)
	}
	a.logger.Info().Str("group", groupID).Str("user", userID).Str("action", action).Msg("Join request answered")
	return nil
}

// BanUser bans a user from a group.
func (a *Accessor) BanUser(ctx context.Context, groupID, userID string) error {
	if err := a.mutate(ctx, http.MethodPost, groupPath(groupID, "bans"), map[string]string{"userId": userID}); err != nil {
		return err
	}

	a.cache.InvalidateBans(groupID)
	a.cache.InvalidateMembers(groupID)
	a.logger.Info().Str("group", groupID).Str("user", userID).Msg("User banned")
	return nil
}

// UnbanUser lifts a group ban.
func (a *Accessor) UnbanUser(ctx context.Context, groupID, userID string) error {
	endpoint := groupPath(groupID, "bans") + "/" + url.PathEscape(userID)
	if err := a.mutate(ctx, http.MethodDelete, endpoint, nil); err != nil {
		return err
	}

	a.cache.InvalidateBans(groupID)
	a.logger.Info().Str("group", groupID).Str("user", userID).Msg("User unbanned")
	return nil
}

// CloseInstance closes a group instance. hardClose also removes the users
// currently in it.
func (a *Accessor) CloseInstance(ctx context.Context, groupID, worldID, instanceID string, hardClose bool) error {
	endpoint := "/instances/" + url.PathEscape(worldID+":"+instanceID)
	opts := &client.Options{Query: url.Values{"hardClose": {strconv.FormatBool(hardClose)}}}

	resp, err := a.d.Dispatch(ctx, http.MethodDelete, endpoint, opts)
	if err != nil {
		return err
	}
	if err := client.CheckStatus(resp); err != nil {
		return err
	}

	a.cache.InvalidateInstances(groupID)
	a.logger.Info().Str("group", groupID).Str("instance", worldID+":"+instanceID).Bool("hard_close", hardClose).Msg("Instance closed")
	return nil
}

func (a *Accessor) record(endpoint string) FetchFunc[cache.Record] {
	return func(ctx context.Context) (cache.Record, bool, error) {
		return FetchRecord(ctx, a.d, endpoint, nil)
	}
}

func (a *Accessor) list(endpoint string, query url.Values) FetchFunc[[]cache.Record] {
	return func(ctx context.Context) ([]cache.Record, bool, error) {
		return FetchList(ctx, a.d, endpoint, query)
	}
}

func (a *Accessor) mutate(ctx context.Context, method, endpoint string, body any) error {
	var opts *client.Options
	if body != nil {
		opts = &client.Options{Body: body}
	}
	resp, err := a.d.Dispatch(ctx, method, endpoint, opts)
	if err != nil {
		return err
	}
	return client.CheckStatus(resp)
}

func groupPath(groupID, sub string) string {
	return "/groups/" + url.PathEscape(groupID) + "/" + sub
}

// asRecords accepts both the in-memory list and its JSON-decoded form from
// a loaded snapshot.
func asRecords(v any) []cache.Record {
	switch list := v.(type) {
	case []cache.Record:
		return list
	case []any:
		out := make([]cache.Record, 0, len(list))
		for _, item := range list {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out
	default:
		return nil
	}
}
