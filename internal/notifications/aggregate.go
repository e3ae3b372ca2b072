package notifications

import (
	"sort"
	"time"

	"github.com/shafin96/pulsegram/backend/internal/models"
)

const (
	// rawFetchWindow caps how many recent event rows one aggregation pass
	// considers. Events older than the window still exist and still count
	// toward the unread total, but they cannot join a group on this pass.
	rawFetchWindow = 300

	maxActorsShown  = 2
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// aggregated is one display group before actor identities are resolved.
type aggregated struct {
	key             string
	eventIDs        []string
	eventType       string
	targetPostID    string
	targetCommentID string
	actorIDs        []uint // distinct, most recent first
	isUnread        bool
	mostRecentAt    time.Time
}

// groupKey scopes like and comment events per target post; every other type
// collapses into a single group for the recipient.
func groupKey(n *models.Notification) string {
	switch n.Type {
	case models.NotificationTypeLike, models.NotificationTypeComment:
		return n.Type + ":" + n.TargetPostID
	default:
		return n.Type
	}
}

// aggregate folds a newest-first event window into display groups. Each
// group keeps its members' ordering, dedupes actors keeping the most recent
// occurrence, and is unread if any member is unread. Groups are ranked by
// their newest member; ties fall back to lexical key order so pagination
// stays deterministic.
func aggregate(events []models.Notification) []*aggregated {
	byKey := make(map[string]*aggregated)
	var groups []*aggregated

	for i := range events {
		e := &events[i]
		key := groupKey(e)
		g := byKey[key]
		if g == nil {
			// fields describing the group come from its most recent member,
			// which is the first one seen
			g = &aggregated{
				key:             key,
				eventType:       e.Type,
				targetPostID:    e.TargetPostID,
				targetCommentID: e.TargetCommentID,
				mostRecentAt:    e.CreatedAt,
			}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.eventIDs = append(g.eventIDs, e.ID)
		if e.ReadAt == nil {
			g.isUnread = true
		}
		if !containsActor(g.actorIDs, e.ActorID) {
			g.actorIDs = append(g.actorIDs, e.ActorID)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].mostRecentAt.Equal(groups[j].mostRecentAt) {
			return groups[i].mostRecentAt.After(groups[j].mostRecentAt)
		}
		return groups[i].key < groups[j].key
	})
	return groups
}

// pageGroups applies offset/limit at the group level and reports whether
// more groups remain past the requested page.
func pageGroups(groups []*aggregated, limit, offset int) ([]*aggregated, bool) {
	if offset >= len(groups) {
		return nil, false
	}
	end := offset + limit
	if end >= len(groups) {
		return groups[offset:], false
	}
	return groups[offset:end], true
}

func containsActor(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
