package notifications

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shafin96/pulsegram/backend/internal/models"
	"github.com/shafin96/pulsegram/backend/internal/repositories"
	"go.uber.org/zap"
)

// PushSender delivers one payload to one subscription endpoint. It may fail
// per endpoint; the dispatcher isolates those failures from each other.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// pushPayload is the JSON body every endpoint receives.
type pushPayload struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// Dispatcher fans a single event out to all of a recipient's registered
// endpoints. Delivery is best-effort: Dispatch never returns an error.
type Dispatcher struct {
	subs   repositories.PushSubscriptionRepository
	sender PushSender
	logger *zap.Logger
}

// NewDispatcher creates a new Dispatcher. A nil sender disables push
// delivery entirely (no credentials configured).
func NewDispatcher(subs repositories.PushSubscriptionRepository, sender PushSender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{subs: subs, sender: sender, logger: logger}
}

// Dispatch sends the event to every endpoint in parallel and waits for all
// attempts to settle. One dead endpoint cannot block or cancel the others,
// and no failure propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.Notification, actor models.UserCompact) {
	if d.sender == nil {
		return
	}

	subs, err := d.subs.ByRecipient(event.RecipientID)
	if err != nil {
		d.logger.Warn("could not load push subscriptions",
			zap.Uint("recipient_id", event.RecipientID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{
		Title: pushTitle(event.Type, actor),
		URL:   pushURL(event, actor),
		Type:  event.Type,
	})
	if err != nil {
		d.logger.Error("could not encode push payload", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()
			if err := d.sender.Send(ctx, sub, payload); err != nil {
				// expired endpoints land here on every attempt; pruning them
				// is not this component's job
				d.logger.Warn("push delivery failed",
					zap.String("endpoint", sub.Endpoint), zap.Error(err))
			}
		}(sub)
	}
	wg.Wait()
}

func pushTitle(eventType string, actor models.UserCompact) string {
	name := actor.DisplayName
	if name == "" {
		name = actor.Username
	}
	if name == "" {
		name = "Someone"
	}
	switch eventType {
	case models.NotificationTypeLike:
		return name + " liked your post"
	case models.NotificationTypeComment:
		return name + " commented on your post"
	case models.NotificationTypeFollow:
		return name + " started following you"
	case models.NotificationTypeMention:
		return name + " mentioned you"
	default:
		return "New notification"
	}
}

func pushURL(event models.Notification, actor models.UserCompact) string {
	if event.Type == models.NotificationTypeFollow {
		return "/profile/" + actor.Username
	}
	return "/post/" + event.TargetPostID
}
