package service

import "errors"

// Business-rule failures. Not-found conditions travel as the repo sentinels
// (repo.ErrMeetupNotFound, repo.ErrSubscriptionNotFound).
var (
	ErrForbidden         = errors.New("not authorized")
	ErrInvalidDate       = errors.New("date is not in the future")
	ErrPastMeetup        = errors.New("meetup date has elapsed")
	ErrSelfSubscription  = errors.New("cannot subscribe to own meetup")
	ErrAlreadySubscribed = errors.New("already subscribed to this meetup")
	ErrScheduleConflict  = errors.New("already subscribed to another meetup at this date")
)
