package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shafin96/pulsegram/backend/internal/models"
	"github.com/shafin96/pulsegram/backend/internal/repositories"
	"go.uber.org/zap"
)

// RealtimePublisher pushes a just-recorded event to the recipient's live
// connections.
type RealtimePublisher interface {
	PublishNotification(recipientID uint, event models.Notification, actor models.UserCompact)
}

// Recorder persists notification events and kicks off best-effort delivery.
// Nothing it does may break the mutation that triggered it: failures are
// logged and swallowed.
type Recorder struct {
	events     repositories.NotificationRepository
	users      repositories.UserRepository
	dispatcher *Dispatcher
	publisher  RealtimePublisher
	logger     *zap.Logger
}

// NewRecorder creates a new Recorder. Dispatcher and publisher may be nil;
// the corresponding delivery channel is then skipped.
func NewRecorder(
	events repositories.NotificationRepository,
	users repositories.UserRepository,
	dispatcher *Dispatcher,
	publisher RealtimePublisher,
	logger *zap.Logger,
) *Recorder {
	return &Recorder{
		events:     events,
		users:      users,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// Record writes one event row and triggers delivery in the background.
// Self-caused events are dropped entirely: no row, no push.
func (r *Recorder) Record(recipientID, actorID uint, eventType, postID, commentID string) {
	if recipientID == actorID {
		return
	}

	event := models.Notification{
		ID:              uuid.NewString(),
		RecipientID:     recipientID,
		ActorID:         actorID,
		Type:            eventType,
		TargetPostID:    postID,
		TargetCommentID: commentID,
		CreatedAt:       time.Now(),
	}
	if err := r.events.Create(&event); err != nil {
		r.logger.Error("failed to record notification event",
			zap.Uint("recipient_id", recipientID),
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	go r.deliver(event)
}

// deliver runs detached from the request that recorded the event. Its errors
// never reach that request's error channel.
func (r *Recorder) deliver(event models.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("notification delivery panicked", zap.Any("panic", rec))
		}
	}()

	var actor models.UserCompact
	if u, err := r.users.GetUserByID(event.ActorID); err == nil {
		actor = u.ToCompact()
	} else {
		actor.ID = event.ActorID
		r.logger.Warn("could not resolve actor for delivery",
			zap.Uint("actor_id", event.ActorID), zap.Error(err))
	}

	if r.publisher != nil {
		r.publisher.PublishNotification(event.RecipientID, event, actor)
	}
	if r.dispatcher != nil {
		r.dispatcher.Dispatch(context.Background(), event, actor)
	}
}
