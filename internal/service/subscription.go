package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meetapp/internal/dto"
	"meetapp/internal/model"
	"meetapp/internal/repo"
)

type subscriptionService struct {
	repo repo.Repository
	log  *zerolog.Logger
	pub  Publisher
	now  Clock
}

// NewSubscriptionService builds the subscription engine. pub may be nil,
// in which case no notification intents are emitted.
func NewSubscriptionService(r repo.Repository, log *zerolog.Logger, pub Publisher, now Clock) SubscriptionService {
	return &subscriptionService{
		repo: r,
		log:  log,
		pub:  pub,
		now:  now,
	}
}

func (s *subscriptionService) ListMine(ctx context.Context, actorID int) ([]model.Subscription, error) {
	return s.repo.ListUpcomingSubscriptions(ctx, actorID, s.now())
}

// Subscribe runs the invariant checks in a fixed order, short-circuiting at
// the first failure: existence, self-subscription, past-state, duplicate,
// schedule conflict. The pre-checks give specific errors in the common case;
// the store's unique constraints settle races, and their violations are
// reported under the same two errors.
func (s *subscriptionService) Subscribe(ctx context.Context, actorID, meetupID int) (*model.Subscription, error) {
	m, err := s.repo.GetMeetupByID(ctx, meetupID)
	if err != nil {
		return nil, err
	}
	if m.UserID == actorID {
		return nil, ErrSelfSubscription
	}
	if isPast(m.Date, s.now()) {
		return nil, ErrPastMeetup
	}

	subscribed, err := s.repo.HasSubscription(ctx, actorID, meetupID)
	if err != nil {
		return nil, err
	}
	if subscribed {
		return nil, ErrAlreadySubscribed
	}

	busy, err := s.repo.HasSubscriptionAt(ctx, actorID, m.Date)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrScheduleConflict
	}

	sub := &model.Subscription{UserID: actorID, MeetupID: meetupID}
	id, err := s.repo.CreateSubscription(ctx, sub, m.Date)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicateSubscription):
			return nil, ErrAlreadySubscribed
		case errors.Is(err, repo.ErrScheduleConflict):
			return nil, ErrScheduleConflict
		}
		return nil, err
	}
	sub.ID = id
	sub.Meetup = m

	s.log.Info().
		Int("subscription_id", id).
		Int("meetup_id", meetupID).
		Int("user_id", actorID).
		Msg("subscription created")

	s.notify(sub)
	return sub, nil
}

func (s *subscriptionService) Unsubscribe(ctx context.Context, actorID, subscriptionID int) error {
	sub, err := s.repo.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if !authorized(actorID, sub.UserID) {
		return ErrForbidden
	}
	if isPast(sub.Meetup.Date, s.now()) {
		return ErrPastMeetup
	}

	if err := s.repo.DeleteSubscription(ctx, subscriptionID); err != nil {
		return err
	}

	s.log.Info().
		Int("subscription_id", subscriptionID).
		Int("user_id", actorID).
		Msg("subscription removed")
	return nil
}

// notify publishes the notification intent without blocking the subscribe
// response; delivery is the consumer's concern.
func (s *subscriptionService) notify(sub *model.Subscription) {
	if s.pub == nil {
		return
	}

	msg := dto.SubscriptionCreatedMessage{
		MessageID:      uuid.NewString(),
		SubscriptionID: sub.ID,
		MeetupID:       sub.MeetupID,
		SubscriberID:   sub.UserID,
		CreatedAt:      sub.CreatedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal notification intent")
		return
	}

	go func() {
		if err := s.pub.Publish(payload); err != nil {
			s.log.Error().Err(err).
				Int("subscription_id", sub.ID).
				Msg("failed to publish notification intent")
		}
	}()
}
