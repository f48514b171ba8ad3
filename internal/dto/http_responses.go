package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	MeetupNotFound       = "MEETUP_NOT_FOUND"
	SubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	NotAuthorized        = "NOT_AUTHORIZED"
	MeetupPast           = "MEETUP_PAST"
	DateNotFuture        = "DATE_NOT_FUTURE"
	SelfSubscription     = "SELF_SUBSCRIPTION"
	AlreadySubscribed    = "ALREADY_SUBSCRIBED"
	ScheduleConflict     = "SCHEDULE_CONFLICT"
)

type CreateMeetupRequest struct {
	Title       string    `json:"title" validate:"required,min=3,max=255"`
	Description string    `json:"description" validate:"required"`
	Location    string    `json:"location" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	FileID      *int      `json:"file_id" validate:"omitempty,positive"`
}

// UpdateMeetupRequest carries partial updates; nil fields are left untouched.
type UpdateMeetupRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Date        *time.Time `json:"date"`
	FileID      *int       `json:"file_id" validate:"omitempty,positive"`
}

type OwnerResponse struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ImageResponse struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

type MeetupResponse struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Date        time.Time      `json:"date"`
	Past        bool           `json:"past"`
	Owner       *OwnerResponse `json:"owner,omitempty"`
	Image       *ImageResponse `json:"image,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type SubscriptionResponse struct {
	ID        int             `json:"id"`
	UserID    int             `json:"user_id"`
	MeetupID  int             `json:"meetup_id"`
	Meetup    *MeetupResponse `json:"meetup,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SubscriptionCreatedMessage is the notification intent published to the
// broker after a successful subscribe.
type SubscriptionCreatedMessage struct {
	MessageID      string    `json:"message_id"`
	SubscriptionID int       `json:"subscription_id"`
	MeetupID       int       `json:"meetup_id"`
	SubscriberID   int       `json:"subscriber_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func ForbiddenError(c *ginext.Context) {
	c.JSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: NotAuthorized,
			Desc: "Not authorized",
		},
	})
}

func ConflictError(c *ginext.Context, code, desc string) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
