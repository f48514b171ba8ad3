package service

import (
	"context"
	"time"

	"meetapp/internal/model"
)

// Clock supplies the current instant; injectable so tests can pin time.
// Every temporal check reads it once per operation.
type Clock func() time.Time

// Publisher hands notification intents to the broker. Implementations must
// tolerate being called from short-lived goroutines.
type Publisher interface {
	Publish(message []byte) error
}

// ListingCache is an optional read-through cache for meetup listing pages.
type ListingCache interface {
	GetMeetups(ctx context.Context, key string) ([]model.Meetup, bool)
	SetMeetups(ctx context.Context, key string, meetups []model.Meetup)
	InvalidateMeetups(ctx context.Context)
}

const pageSize = 10

type MeetupInput struct {
	Title       string
	Description string
	Location    string
	Date        time.Time
	FileID      *int
}

// MeetupUpdate carries partial updates; nil fields keep the stored value.
type MeetupUpdate struct {
	Title       *string
	Description *string
	Location    *string
	Date        *time.Time
	FileID      *int
}

type ListMeetupsParams struct {
	// Day restricts the listing to meetups within that calendar day.
	Day  *time.Time
	Page int
}

type MeetupService interface {
	List(ctx context.Context, p ListMeetupsParams) ([]model.Meetup, error)
	ListOwned(ctx context.Context, actorID int) ([]model.Meetup, error)
	Create(ctx context.Context, actorID int, in MeetupInput) (*model.Meetup, error)
	Update(ctx context.Context, actorID, meetupID int, in MeetupUpdate) (*model.Meetup, error)
	Delete(ctx context.Context, actorID, meetupID int) error
}

type SubscriptionService interface {
	ListMine(ctx context.Context, actorID int) ([]model.Subscription, error)
	Subscribe(ctx context.Context, actorID, meetupID int) (*model.Subscription, error)
	Unsubscribe(ctx context.Context, actorID, subscriptionID int) error
}

// isPast reports whether a meetup dated at date has elapsed as of now.
// date == now counts as past.
func isPast(date, now time.Time) bool {
	return !date.After(now)
}

// authorized reports whether the actor owns the resource.
func authorized(actorID, ownerID int) bool {
	return actorID == ownerID
}

// dayBounds returns the inclusive [start, end] instants of d's calendar day.
func dayBounds(d time.Time) (time.Time, time.Time) {
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)
	return start, end
}
