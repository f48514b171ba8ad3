package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"meetapp/internal/model"
	"meetapp/internal/repo"
)

type meetupService struct {
	repo  repo.Repository
	log   *zerolog.Logger
	cache ListingCache
	now   Clock
}

// NewMeetupService builds the meetup lifecycle service. cache may be nil.
func NewMeetupService(r repo.Repository, log *zerolog.Logger, cache ListingCache, now Clock) MeetupService {
	return &meetupService{
		repo:  r,
		log:   log,
		cache: cache,
		now:   now,
	}
}

func (s *meetupService) List(ctx context.Context, p ListMeetupsParams) ([]model.Meetup, error) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	key := fmt.Sprintf("meetups:all:%d", page)
	if p.Day != nil {
		key = fmt.Sprintf("meetups:%s:%d", p.Day.Format("2006-01-02"), page)
	}
	if s.cache != nil {
		if meetups, ok := s.cache.GetMeetups(ctx, key); ok {
			return meetups, nil
		}
	}

	var meetups []model.Meetup
	var err error
	if p.Day != nil {
		from, to := dayBounds(*p.Day)
		meetups, err = s.repo.ListMeetups(ctx, &from, &to, pageSize, offset)
	} else {
		meetups, err = s.repo.ListMeetups(ctx, nil, nil, pageSize, offset)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetMeetups(ctx, key, meetups)
	}
	return meetups, nil
}

func (s *meetupService) ListOwned(ctx context.Context, actorID int) ([]model.Meetup, error) {
	return s.repo.ListMeetupsByOwner(ctx, actorID)
}

func (s *meetupService) Create(ctx context.Context, actorID int, in MeetupInput) (*model.Meetup, error) {
	now := s.now()
	if !in.Date.After(now) {
		return nil, ErrInvalidDate
	}

	m := &model.Meetup{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Date:        in.Date,
		UserID:      actorID,
		FileID:      in.FileID,
	}

	id, err := s.repo.CreateMeetup(ctx, m)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int("meetup_id", id).Int("user_id", actorID).Msg("meetup created")

	return s.repo.GetMeetupByID(ctx, id)
}

// Update applies the checks in a fixed order so error responses stay
// deterministic: existence, ownership, past-state, date validity.
func (s *meetupService) Update(ctx context.Context, actorID, meetupID int, in MeetupUpdate) (*model.Meetup, error) {
	m, err := s.repo.GetMeetupByID(ctx, meetupID)
	if err != nil {
		return nil, err
	}
	if !authorized(actorID, m.UserID) {
		return nil, ErrForbidden
	}

	now := s.now()
	if isPast(m.Date, now) {
		return nil, ErrPastMeetup
	}
	if in.Date != nil && !in.Date.After(now) {
		return nil, ErrInvalidDate
	}

	if in.Title != nil {
		m.Title = *in.Title
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.Location != nil {
		m.Location = *in.Location
	}
	if in.Date != nil {
		m.Date = *in.Date
	}
	if in.FileID != nil {
		m.FileID = in.FileID
	}

	if err := s.repo.UpdateMeetup(ctx, m); err != nil {
		if errors.Is(err, repo.ErrScheduleConflict) {
			return nil, ErrScheduleConflict
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int("meetup_id", meetupID).Msg("meetup updated")

	return s.repo.GetMeetupByID(ctx, meetupID)
}

func (s *meetupService) Delete(ctx context.Context, actorID, meetupID int) error {
	m, err := s.repo.GetMeetupByID(ctx, meetupID)
	if err != nil {
		return err
	}
	if !authorized(actorID, m.UserID) {
		return ErrForbidden
	}
	if isPast(m.Date, s.now()) {
		return ErrPastMeetup
	}

	if err := s.repo.DeleteMeetup(ctx, meetupID); err != nil {
		return err
	}

	s.invalidate(ctx)
	s.log.Info().Int("meetup_id", meetupID).Msg("meetup deleted")
	return nil
}

func (s *meetupService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateMeetups(ctx)
	}
}
