package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetapp/internal/dto"
	"meetapp/internal/model"
	"meetapp/internal/repo"
	"meetapp/internal/service"
)

func newSubscriptionService(t *testing.T) (*fakeRepo, *fakeClock, *fakePublisher, service.MeetupService, service.SubscriptionService) {
	t.Helper()
	r := newFakeRepo()
	r.addUser(model.User{ID: 1, Name: "Alice", Email: "alice@example.com"})
	r.addUser(model.User{ID: 2, Name: "Bob", Email: "bob@example.com"})
	r.addUser(model.User{ID: 3, Name: "Carol", Email: "carol@example.com"})
	clk := newFakeClock(base)
	pub := newFakePublisher()
	nop := zerolog.Nop()
	meetups := service.NewMeetupService(r, &nop, nil, clk.Now)
	subs := service.NewSubscriptionService(r, &nop, pub, clk.Now)
	return r, clk, pub, meetups, subs
}

func waitForIntent(t *testing.T, pub *fakePublisher) dto.SubscriptionCreatedMessage {
	t.Helper()
	select {
	case raw := <-pub.messages:
		var msg dto.SubscriptionCreatedMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no notification intent published")
		return dto.SubscriptionCreatedMessage{}
	}
}

func TestSubscribe_UnknownMeetup(t *testing.T) {
	_, _, _, _, subs := newSubscriptionService(t)

	_, err := subs.Subscribe(context.Background(), 2, 999)
	assert.ErrorIs(t, err, repo.ErrMeetupNotFound)
}

func TestSubscribe_OwnMeetup(t *testing.T) {
	_, _, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	_, err := subs.Subscribe(context.Background(), 1, m.ID)
	assert.ErrorIs(t, err, service.ErrSelfSubscription)
}

func TestSubscribe_PastMeetup(t *testing.T) {
	_, clk, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	clk.Advance(time.Hour) // date == now classifies as past
	_, err := subs.Subscribe(context.Background(), 2, m.ID)
	assert.ErrorIs(t, err, service.ErrPastMeetup)
}

func TestSubscribe_Duplicate(t *testing.T) {
	r, _, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	_, err := subs.Subscribe(context.Background(), 2, m.ID)
	require.NoError(t, err)

	_, err = subs.Subscribe(context.Background(), 2, m.ID)
	assert.ErrorIs(t, err, service.ErrAlreadySubscribed)
	assert.Equal(t, 1, r.subscriptionCount(), "no duplicate record may be stored")
}

func TestSubscribe_ScheduleConflict(t *testing.T) {
	_, _, _, meetups, subs := newSubscriptionService(t)
	date := base.Add(time.Hour)
	m1 := createMeetup(t, meetups, 1, date)
	m2 := createMeetup(t, meetups, 1, date)

	_, err := subs.Subscribe(context.Background(), 2, m1.ID)
	require.NoError(t, err)

	_, err = subs.Subscribe(context.Background(), 2, m2.ID)
	assert.ErrorIs(t, err, service.ErrScheduleConflict)
}

// A retried subscribe to the same meetup reports the duplicate, not the
// schedule conflict both rules would otherwise trip.
func TestSubscribe_DuplicateBeforeConflict(t *testing.T) {
	_, _, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	_, err := subs.Subscribe(context.Background(), 2, m.ID)
	require.NoError(t, err)

	_, err = subs.Subscribe(context.Background(), 2, m.ID)
	assert.ErrorIs(t, err, service.ErrAlreadySubscribed)
}

func TestSubscribe_PublishesIntent(t *testing.T) {
	_, _, pub, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	sub, err := subs.Subscribe(context.Background(), 2, m.ID)
	require.NoError(t, err)

	msg := waitForIntent(t, pub)
	assert.Equal(t, sub.ID, msg.SubscriptionID)
	assert.Equal(t, m.ID, msg.MeetupID)
	assert.Equal(t, 2, msg.SubscriberID)
	assert.NotEmpty(t, msg.MessageID)
}

func TestSubscribe_CreatedAtComesFromStore(t *testing.T) {
	r, _, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	sub, err := subs.Subscribe(context.Background(), 2, m.ID)
	require.NoError(t, err)
	require.False(t, sub.CreatedAt.IsZero())

	stored, err := r.GetSubscriptionByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, sub.CreatedAt.Equal(stored.CreatedAt))
}

func TestSubscribe_ConcurrentSamePair(t *testing.T) {
	r, _, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = subs.Subscribe(context.Background(), 2, m.ID)
		}(i)
	}
	wg.Wait()

	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], service.ErrAlreadySubscribed)
	} else {
		assert.NoError(t, errs[1])
		assert.ErrorIs(t, errs[0], service.ErrAlreadySubscribed)
	}
	assert.Equal(t, 1, r.subscriptionCount())
}

func TestSubscribe_ConcurrentSameDate(t *testing.T) {
	r, _, _, meetups, subs := newSubscriptionService(t)
	date := base.Add(time.Hour)
	m1 := createMeetup(t, meetups, 1, date)
	m2 := createMeetup(t, meetups, 1, date)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	ids := []int{m1.ID, m2.ID}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = subs.Subscribe(context.Background(), 2, ids[i])
		}(i)
	}
	wg.Wait()

	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], service.ErrScheduleConflict)
	} else {
		assert.NoError(t, errs[1])
		assert.ErrorIs(t, errs[0], service.ErrScheduleConflict)
	}
	assert.Equal(t, 1, r.subscriptionCount())
}

func TestUnsubscribe(t *testing.T) {
	r, clk, _, meetups, subs := newSubscriptionService(t)
	m := createMeetup(t, meetups, 1, base.Add(time.Hour))
	sub, err := subs.Subscribe(context.Background(), 2, m.ID)
	require.NoError(t, err)

	t.Run("unknown subscription", func(t *testing.T) {
		err := subs.Unsubscribe(context.Background(), 2, 999)
		assert.ErrorIs(t, err, repo.ErrSubscriptionNotFound)
	})

	t.Run("only the subscriber may unsubscribe", func(t *testing.T) {
		err := subs.Unsubscribe(context.Background(), 3, sub.ID)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, subs.Unsubscribe(context.Background(), 2, sub.ID))
		assert.Equal(t, 0, r.subscriptionCount())
	})

	t.Run("past meetup freezes the subscription", func(t *testing.T) {
		frozen, err := subs.Subscribe(context.Background(), 2, m.ID)
		require.NoError(t, err)
		clk.Advance(2 * time.Hour)
		err = subs.Unsubscribe(context.Background(), 2, frozen.ID)
		assert.ErrorIs(t, err, service.ErrPastMeetup)
	})
}

func TestListMine_UpcomingOnlyOrdered(t *testing.T) {
	_, clk, _, meetups, subs := newSubscriptionService(t)

	early := createMeetup(t, meetups, 1, base.Add(time.Hour))
	late := createMeetup(t, meetups, 1, base.Add(5*time.Hour))
	soonGone := createMeetup(t, meetups, 1, base.Add(30*time.Minute))

	for _, m := range []*model.Meetup{late, early, soonGone} {
		_, err := subs.Subscribe(context.Background(), 2, m.ID)
		require.NoError(t, err)
	}

	clk.Advance(45 * time.Minute) // soonGone is now past

	got, err := subs.ListMine(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].MeetupID)
	assert.Equal(t, late.ID, got[1].MeetupID)
}

// Full lifecycle: B subscribes to A's meetup, A cannot self-subscribe, the
// clock passes the meetup date, and late actors are rejected.
func TestSubscriptionLifecycleScenario(t *testing.T) {
	_, clk, pub, meetups, subs := newSubscriptionService(t)

	m := createMeetup(t, meetups, 1, base.Add(time.Hour))

	sub, err := subs.Subscribe(context.Background(), 2, m.ID)
	require.NoError(t, err)
	msg := waitForIntent(t, pub)
	assert.Equal(t, 2, msg.SubscriberID)
	assert.Equal(t, m.ID, msg.MeetupID)

	_, err = subs.Subscribe(context.Background(), 1, m.ID)
	assert.ErrorIs(t, err, service.ErrSelfSubscription)

	clk.Advance(61 * time.Minute)

	_, err = subs.Subscribe(context.Background(), 3, m.ID)
	assert.ErrorIs(t, err, service.ErrPastMeetup)

	err = subs.Unsubscribe(context.Background(), 2, sub.ID)
	assert.ErrorIs(t, err, service.ErrPastMeetup)
}
