package model

import "time"

type User struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// File is an opaque image reference attached to a meetup. The service never
// reads its content; uploads are handled elsewhere.
type File struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Path      string    `db:"path" json:"path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Meetup struct {
	ID          int       `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Location    string    `db:"location" json:"location"`
	Date        time.Time `db:"date" json:"date"`
	UserID      int       `db:"user_id" json:"user_id"`
	FileID      *int      `db:"file_id" json:"file_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Projections filled by read-side joins, nil when not requested.
	Owner *User `db:"-" json:"owner,omitempty"`
	Image *File `db:"-" json:"image,omitempty"`
}

// Past reports whether the meetup's date has elapsed relative to now.
// Always derived from Date, never stored.
func (m *Meetup) Past(now time.Time) bool {
	return !m.Date.After(now)
}

type Subscription struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	MeetupID  int       `db:"meetup_id" json:"meetup_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Meetup is the joined meetup record, nil when not requested.
	Meetup *Meetup `db:"-" json:"meetup,omitempty"`
}
