package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"meetapp/internal/model"
	"meetapp/internal/repo"
)

// fakeRepo is an in-memory repo.Repository. It enforces the same two unique
// constraints as the Postgres schema under a single lock, so racing
// subscribers hit the same sentinel errors as against the real store.
type fakeRepo struct {
	mu           sync.Mutex
	users        map[int]*model.User
	meetups      map[int]*model.Meetup
	subs         map[int]*model.Subscription
	subDates     map[int]time.Time
	nextMeetupID int
	nextSubID    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:        make(map[int]*model.User),
		meetups:      make(map[int]*model.Meetup),
		subs:         make(map[int]*model.Subscription),
		subDates:     make(map[int]time.Time),
		nextMeetupID: 1,
		nextSubID:    1,
	}
}

func (f *fakeRepo) addUser(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &u
}

func (f *fakeRepo) CreateMeetup(_ context.Context, m *model.Meetup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextMeetupID
	f.nextMeetupID++

	stored := *m
	stored.ID = id
	f.meetups[id] = &stored
	return id, nil
}

func (f *fakeRepo) GetMeetupByID(_ context.Context, id int) (*model.Meetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.meetups[id]
	if !ok {
		return nil, repo.ErrMeetupNotFound
	}
	out := *m
	if u, ok := f.users[m.UserID]; ok {
		owner := *u
		out.Owner = &owner
	}
	return &out, nil
}

func (f *fakeRepo) ListMeetups(_ context.Context, from, to *time.Time, limit, offset int) ([]model.Meetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []model.Meetup
	for _, m := range f.meetups {
		if from != nil && to != nil {
			if m.Date.Before(*from) || m.Date.After(*to) {
				continue
			}
		}
		all = append(all, *m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeRepo) ListMeetupsByOwner(_ context.Context, ownerID int) ([]model.Meetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Meetup
	for _, m := range f.meetups {
		if m.UserID == ownerID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateMeetup(_ context.Context, m *model.Meetup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.meetups[m.ID]; !ok {
		return repo.ErrMeetupNotFound
	}
	for id, s := range f.subs {
		if s.MeetupID != m.ID {
			continue
		}
		for otherID, other := range f.subs {
			if otherID != id && other.UserID == s.UserID && f.subDates[otherID].Equal(m.Date) {
				return repo.ErrScheduleConflict
			}
		}
	}

	stored := *m
	stored.Owner = nil
	stored.Image = nil
	f.meetups[m.ID] = &stored

	for id, s := range f.subs {
		if s.MeetupID == m.ID {
			f.subDates[id] = m.Date
		}
	}
	return nil
}

func (f *fakeRepo) DeleteMeetup(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.meetups[id]; !ok {
		return repo.ErrMeetupNotFound
	}
	delete(f.meetups, id)
	for sid, s := range f.subs {
		if s.MeetupID == id {
			delete(f.subs, sid)
			delete(f.subDates, sid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateSubscription(_ context.Context, s *model.Subscription, meetupDate time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, existing := range f.subs {
		if existing.UserID == s.UserID && existing.MeetupID == s.MeetupID {
			return 0, repo.ErrDuplicateSubscription
		}
		if existing.UserID == s.UserID && f.subDates[id].Equal(meetupDate) {
			return 0, repo.ErrScheduleConflict
		}
	}

	id := f.nextSubID
	f.nextSubID++

	stored := model.Subscription{ID: id, UserID: s.UserID, MeetupID: s.MeetupID, CreatedAt: time.Now()}
	f.subs[id] = &stored
	f.subDates[id] = meetupDate
	s.CreatedAt = stored.CreatedAt
	return id, nil
}

func (f *fakeRepo) GetSubscriptionByID(_ context.Context, id int) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.subs[id]
	if !ok {
		return nil, repo.ErrSubscriptionNotFound
	}
	out := *s
	if m, ok := f.meetups[s.MeetupID]; ok {
		meetup := *m
		out.Meetup = &meetup
	}
	return &out, nil
}

func (f *fakeRepo) ListUpcomingSubscriptions(_ context.Context, userID int, now time.Time) ([]model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Subscription
	for _, s := range f.subs {
		if s.UserID != userID {
			continue
		}
		m, ok := f.meetups[s.MeetupID]
		if !ok || !m.Date.After(now) {
			continue
		}
		sub := *s
		meetup := *m
		sub.Meetup = &meetup
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meetup.Date.Before(out[j].Meetup.Date) })
	return out, nil
}

func (f *fakeRepo) HasSubscription(_ context.Context, userID, meetupID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subs {
		if s.UserID == userID && s.MeetupID == meetupID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) HasSubscriptionAt(_ context.Context, userID int, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, s := range f.subs {
		if s.UserID == userID && f.subDates[id].Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) DeleteSubscription(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[id]; !ok {
		return repo.ErrSubscriptionNotFound
	}
	delete(f.subs, id)
	delete(f.subDates, id)
	return nil
}

func (f *fakeRepo) GetUserByID(_ context.Context, id int) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeRepo) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

// fakeClock is a settable clock shared between test and service.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakePublisher records published intents on a channel so tests can wait for
// the asynchronous dispatch.
type fakePublisher struct {
	messages chan []byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(chan []byte, 16)}
}

func (p *fakePublisher) Publish(message []byte) error {
	p.messages <- message
	return nil
}

// fakeCache is a map-backed ListingCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]model.Meetup
	sets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]model.Meetup)}
}

func (c *fakeCache) GetMeetups(_ context.Context, key string) ([]model.Meetup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	meetups, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return meetups, ok
}

func (c *fakeCache) SetMeetups(_ context.Context, key string, meetups []model.Meetup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = meetups
	c.sets++
}

func (c *fakeCache) InvalidateMeetups(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]model.Meetup)
}
