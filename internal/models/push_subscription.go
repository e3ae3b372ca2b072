package models

import (
	"fmt"
	"strings"
	"time"
)

// FCMTokenScheme prefixes mobile device tokens so they can share the
// endpoint column with web push URLs.
const FCMTokenScheme = "fcm:"

// PushSubscription is one delivery endpoint for a recipient. A recipient may
// register many. Endpoint is the natural key: registering the same endpoint
// again updates the row instead of duplicating it.
type PushSubscription struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	RecipientID uint      `json:"recipient_id" gorm:"index"`
	Endpoint    string    `json:"endpoint" gorm:"uniqueIndex;size:512"`
	P256dh      string    `json:"p256dh,omitempty"` // empty for FCM tokens
	Auth        string    `json:"auth,omitempty"`   // empty for FCM tokens
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsFCM reports whether this subscription is a mobile device token rather
// than a web push endpoint.
func (s *PushSubscription) IsFCM() bool {
	return strings.HasPrefix(s.Endpoint, FCMTokenScheme)
}

// FCMToken returns the bare device token for an FCM subscription.
func (s *PushSubscription) FCMToken() string {
	return strings.TrimPrefix(s.Endpoint, FCMTokenScheme)
}

// RegisterPushSubscriptionRequest accepts either a browser push subscription
// (endpoint plus encryption keys) or a mobile device token.
type RegisterPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	Token string `json:"token,omitempty"`
}

// Subscription converts the request into a storable row, rejecting
// descriptors that match neither accepted shape.
func (r *RegisterPushSubscriptionRequest) Subscription(recipientID uint) (*PushSubscription, error) {
	if r.Token != "" {
		if r.Endpoint != "" {
			return nil, fmt.Errorf("provide either a web push endpoint or a device token, not both")
		}
		return &PushSubscription{
			RecipientID: recipientID,
			Endpoint:    FCMTokenScheme + r.Token,
		}, nil
	}
	if r.Endpoint == "" {
		return nil, fmt.Errorf("endpoint or token is required")
	}
	if r.Keys.P256dh == "" || r.Keys.Auth == "" {
		return nil, fmt.Errorf("web push subscriptions require p256dh and auth keys")
	}
	return &PushSubscription{
		RecipientID: recipientID,
		Endpoint:    r.Endpoint,
		P256dh:      r.Keys.P256dh,
		Auth:        r.Keys.Auth,
	}, nil
}
