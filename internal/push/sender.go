package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/shafin96/pulsegram/backend/internal/models"
)

// VAPIDConfig holds the web push signing credentials.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string // mailto: contact required by push services
}

// Sender routes a payload to Firebase Cloud Messaging or a web push service
// depending on the subscription shape.
type Sender struct {
	messaging *messaging.Client // nil when Firebase credentials are absent
	vapid     VAPIDConfig
}

// NewSender creates a Sender. Either transport may be unconfigured; sends
// over a missing transport fail per endpoint.
func NewSender(messagingClient *messaging.Client, vapid VAPIDConfig) *Sender {
	return &Sender{messaging: messagingClient, vapid: vapid}
}

// Configured reports whether at least one transport can actually deliver.
func (s *Sender) Configured() bool {
	return s.messaging != nil || (s.vapid.PublicKey != "" && s.vapid.PrivateKey != "")
}

// Send delivers one payload to one endpoint.
func (s *Sender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if sub.IsFCM() {
		return s.sendFCM(ctx, sub.FCMToken(), payload)
	}
	return s.sendWebPush(ctx, sub, payload)
}

func (s *Sender) sendFCM(ctx context.Context, token string, payload []byte) error {
	if s.messaging == nil {
		return fmt.Errorf("fcm transport not configured")
	}
	_, err := s.messaging.Send(ctx, &messaging.Message{
		Token: token,
		Data:  map[string]string{"payload": string(payload)},
	})
	return err
}

func (s *Sender) sendWebPush(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if s.vapid.PublicKey == "" || s.vapid.PrivateKey == "" {
		return fmt.Errorf("vapid keys not configured")
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.vapid.Subject,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             60,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
