package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"meetapp/cmd/middleware"
	"meetapp/internal/dto"
	"meetapp/internal/model"
	"meetapp/internal/repo"
	"meetapp/internal/service"
	"meetapp/pkg/validator"
)

type Handler struct {
	meetups     service.MeetupService
	subs        service.SubscriptionService
	log         *zerolog.Logger
	now         service.Clock
	fileBaseURL string
}

func New(meetups service.MeetupService, subs service.SubscriptionService, log *zerolog.Logger, now service.Clock, fileBaseURL string) *Handler {
	return &Handler{
		meetups:     meetups,
		subs:        subs,
		log:         log,
		now:         now,
		fileBaseURL: fileBaseURL,
	}
}

func (h *Handler) ListMeetups(ctx *ginext.Context) {
	page := 1
	if raw := ctx.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid page")
			return
		}
		page = parsed
	}

	params := service.ListMeetupsParams{Page: page}
	if raw := ctx.Query("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid date, expected YYYY-MM-DD")
			return
		}
		params.Day = &day
	}

	meetups, err := h.meetups.List(ctx.Request.Context(), params)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	now := h.now()
	resp := make([]dto.MeetupResponse, 0, len(meetups))
	for i := range meetups {
		resp = append(resp, h.toMeetupResponse(&meetups[i], now))
	}
	dto.SuccessResponse(ctx, resp)
}

func (h *Handler) ListOwnedMeetups(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	meetups, err := h.meetups.ListOwned(ctx.Request.Context(), actorID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	now := h.now()
	resp := make([]dto.MeetupResponse, 0, len(meetups))
	for i := range meetups {
		resp = append(resp, h.toMeetupResponse(&meetups[i], now))
	}
	dto.SuccessResponse(ctx, resp)
}

func (h *Handler) CreateMeetup(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	var req dto.CreateMeetupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	m, err := h.meetups.Create(ctx.Request.Context(), actorID, service.MeetupInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        req.Date,
		FileID:      req.FileID,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	dto.SuccessCreatedResponse(ctx, h.toMeetupResponse(m, h.now()))
}

func (h *Handler) UpdateMeetup(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	meetupID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid meetup ID")
		return
	}

	var req dto.UpdateMeetupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	m, err := h.meetups.Update(ctx.Request.Context(), actorID, meetupID, service.MeetupUpdate{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        req.Date,
		FileID:      req.FileID,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, h.toMeetupResponse(m, h.now()))
}

func (h *Handler) DeleteMeetup(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	meetupID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid meetup ID")
		return
	}

	if err := h.meetups.Delete(ctx.Request.Context(), actorID, meetupID); err != nil {
		h.respondError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, nil)
}

func (h *Handler) ListSubscriptions(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	subs, err := h.subs.ListMine(ctx.Request.Context(), actorID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	now := h.now()
	resp := make([]dto.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		resp = append(resp, h.toSubscriptionResponse(&subs[i], now))
	}
	dto.SuccessResponse(ctx, resp)
}

func (h *Handler) Subscribe(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	meetupID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid meetup ID")
		return
	}

	sub, err := h.subs.Subscribe(ctx.Request.Context(), actorID, meetupID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	dto.SuccessCreatedResponse(ctx, h.toSubscriptionResponse(sub, h.now()))
}

func (h *Handler) Unsubscribe(ctx *ginext.Context) {
	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		dto.ForbiddenError(ctx)
		return
	}

	subscriptionID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid subscription ID")
		return
	}

	if err := h.subs.Unsubscribe(ctx.Request.Context(), actorID, subscriptionID); err != nil {
		h.respondError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, nil)
}

func (h *Handler) respondError(ctx *ginext.Context, err error) {
	switch {
	case errors.Is(err, repo.ErrMeetupNotFound):
		dto.NotFoundError(ctx, dto.MeetupNotFound, "Meetup not found")
	case errors.Is(err, repo.ErrSubscriptionNotFound):
		dto.NotFoundError(ctx, dto.SubscriptionNotFound, "Subscription not found")
	case errors.Is(err, service.ErrForbidden):
		dto.ForbiddenError(ctx)
	case errors.Is(err, service.ErrInvalidDate):
		dto.BadResponseError(ctx, dto.DateNotFuture, "Meetup date must be in the future")
	case errors.Is(err, service.ErrPastMeetup):
		dto.BadResponseError(ctx, dto.MeetupPast, "Meetup has already happened")
	case errors.Is(err, service.ErrSelfSubscription):
		dto.BadResponseError(ctx, dto.SelfSubscription, "Cannot subscribe to your own meetup")
	case errors.Is(err, service.ErrAlreadySubscribed):
		dto.ConflictError(ctx, dto.AlreadySubscribed, "You are already subscribed to this meetup")
	case errors.Is(err, service.ErrScheduleConflict):
		dto.ConflictError(ctx, dto.ScheduleConflict, "You are already subscribed to a meetup at this time")
	default:
		h.log.Error().Err(err).Msg("request failed")
		dto.InternalServerError(ctx)
	}
}

func (h *Handler) toMeetupResponse(m *model.Meetup, now time.Time) dto.MeetupResponse {
	resp := dto.MeetupResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Location:    m.Location,
		Date:        m.Date,
		Past:        m.Past(now),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Owner != nil {
		resp.Owner = &dto.OwnerResponse{ID: m.Owner.ID, Name: m.Owner.Name, Email: m.Owner.Email}
	}
	if m.Image != nil {
		resp.Image = &dto.ImageResponse{
			ID:   m.Image.ID,
			Path: m.Image.Path,
			URL:  h.fileBaseURL + "/" + m.Image.Path,
		}
	}
	return resp
}

func (h *Handler) toSubscriptionResponse(s *model.Subscription, now time.Time) dto.SubscriptionResponse {
	resp := dto.SubscriptionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		MeetupID:  s.MeetupID,
		CreatedAt: s.CreatedAt,
	}
	if s.Meetup != nil {
		m := h.toMeetupResponse(s.Meetup, now)
		resp.Meetup = &m
	}
	return resp
}
