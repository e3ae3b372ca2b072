package notifications

import (
	"time"

	"github.com/shafin96/pulsegram/backend/internal/models"
	"github.com/shafin96/pulsegram/backend/internal/repositories"
	"go.uber.org/zap"
)

// Service exposes the aggregated notification feed and read-state tracking.
// The feed is recomputed from raw rows on every call; there is no cached or
// materialized aggregate to drift from the ledger.
type Service struct {
	events repositories.NotificationRepository
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewService creates a new notification Service
func NewService(events repositories.NotificationRepository, users repositories.UserRepository, logger *zap.Logger) *Service {
	return &Service{events: events, users: users, logger: logger}
}

// Feed returns one page of aggregated notifications for the recipient.
// Limit defaults to DefaultPageSize, is capped at MaxPageSize, and offset is
// clamped to zero.
func (s *Service) Feed(recipientID uint, limit, offset int) (*models.NotificationFeed, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.events.RecentByRecipient(recipientID, rawFetchWindow)
	if err != nil {
		return nil, err
	}

	groups := aggregate(events)
	page, hasMore := pageGroups(groups, limit, offset)
	if len(events) == rawFetchWindow {
		// the window may have truncated older history; over-report so the
		// client fetches once more instead of missing a page
		hasMore = true
	}

	actors, err := s.resolveActors(page)
	if err != nil {
		return nil, err
	}

	items := make([]models.NotificationGroup, 0, len(page))
	for _, g := range page {
		shown := g.actorIDs
		if len(shown) > maxActorsShown {
			shown = shown[:maxActorsShown]
		}
		summaries := make([]models.ActorSummary, 0, len(shown))
		for _, id := range shown {
			summary := models.ActorSummary{ID: id}
			if u, ok := actors[id]; ok {
				username := u.Username
				avatarURL := u.AvatarURL
				summary.Username = &username
				summary.AvatarURL = &avatarURL
			}
			summaries = append(summaries, summary)
		}
		items = append(items, models.NotificationGroup{
			EventIDs:        g.eventIDs,
			Type:            g.eventType,
			TargetPostID:    g.targetPostID,
			TargetCommentID: g.targetCommentID,
			Actors:          summaries,
			TotalActorCount: len(g.actorIDs),
			IsUnread:        g.isUnread,
			MostRecentAt:    g.mostRecentAt,
		})
	}

	return &models.NotificationFeed{Items: items, HasMore: hasMore}, nil
}

// resolveActors batch-loads display identities for every actor shown on the
// page. Deleted accounts are simply absent from the map and render with null
// display fields.
func (s *Service) resolveActors(page []*aggregated) (map[uint]models.User, error) {
	var ids []uint
	seen := make(map[uint]struct{})
	for _, g := range page {
		shown := g.actorIDs
		if len(shown) > maxActorsShown {
			shown = shown[:maxActorsShown]
		}
		for _, id := range shown {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := s.users.GetUsersByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// UnreadCount returns the recipient's true unread total, independent of the
// aggregation window.
func (s *Service) UnreadCount(recipientID uint) (int64, error) {
	return s.events.UnreadCount(recipientID)
}

// MarkRead marks the given event ids read, or everything when ids is empty.
// Events already read keep their original read timestamp.
func (s *Service) MarkRead(recipientID uint, ids []string) error {
	now := time.Now()
	if len(ids) == 0 {
		return s.events.MarkAllRead(recipientID, now)
	}
	return s.events.MarkRead(recipientID, ids, now)
}
