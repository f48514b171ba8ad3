package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"meetapp/internal/dto"
	"meetapp/internal/mailer"
	"meetapp/internal/rabbit"
	"meetapp/internal/repo"
)

// Reader consumes subscription notification intents and emails the meetup
// owner. It is fully decoupled from the subscribe path: a failed delivery is
// requeued or logged here, never surfaced to the subscriber.
type Reader struct {
	RMQ    *rabbit.Client
	repo   repo.Repository
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mail *mailer.Mailer) *Reader {
	return &Reader{
		RMQ:  rmq,
		repo: repo,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("notification reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg dto.SubscriptionCreatedMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("failed to unmarshal message: %s", string(body))
				return err
			}

			zlog.Logger.Info().
				Str("message_id", msg.MessageID).
				Int("subscription_id", msg.SubscriptionID).
				Int("meetup_id", msg.MeetupID).
				Msg("received notification intent")

			meetup, err := r.repo.GetMeetupByID(cctx, msg.MeetupID)
			if err != nil {
				// Meetup may have been deleted since; nothing to notify about.
				zlog.Logger.Warn().
					Err(err).
					Int("meetup_id", msg.MeetupID).
					Msg("meetup not available for notification")
				return nil
			}

			subscriber, err := r.repo.GetUserByID(cctx, msg.SubscriberID)
			if err != nil {
				zlog.Logger.Warn().
					Err(err).
					Int("user_id", msg.SubscriberID).
					Msg("subscriber not available for notification")
				return nil
			}

			if err := r.mail.SendSubscriptionEmail(
				meetup.Title,
				subscriber.Name,
				subscriber.Email,
				meetup.Owner.Email,
			); err != nil {
				zlog.Logger.Warn().
					Err(err).
					Int("subscription_id", msg.SubscriptionID).
					Msg("failed to send subscription email")
			}

			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("notification reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
