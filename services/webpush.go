package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
)

var _ contract.WebPusher = (*VAPIDPusher)(nil)

// VAPIDPusher sends browser push messages signed with the server VAPID keys.
type VAPIDPusher struct {
	log        *slog.Logger
	subscriber string
	publicKey  string
	privateKey string
	ttl        int
}

func NewVAPIDPusher(log *slog.Logger, subscriber, publicKey, privateKey string) *VAPIDPusher {
	return &VAPIDPusher{
		log:        log,
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		ttl:        30,
	}
}

// Push returns ErrPushGone when the push service reports the endpoint as
// expired, so the caller can forget it.
func (v *VAPIDPusher) Push(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{Auth: sub.Auth, P256dh: sub.P256dh},
	}, &webpush.Options{
		Subscriber:      v.subscriber,
		VAPIDPublicKey:  v.publicKey,
		VAPIDPrivateKey: v.privateKey,
		TTL:             v.ttl,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return errors.ErrPushGone
	case resp.StatusCode >= 300:
		return fmt.Errorf("push service answered %d", resp.StatusCode)
	}
	return nil
}
