package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"meetapp/internal/model"
)

var (
	ErrMeetupNotFound        = errors.New("meetup not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateSubscription = errors.New("duplicate subscription")
	ErrScheduleConflict      = errors.New("schedule conflict")
)

// Unique constraint names from migrations/postgres. The insert path maps
// violations of these onto the sentinel errors above; they are the
// authoritative guard against racing subscribers.
const (
	constraintUserMeetup     = "subscriptions_user_meetup_key"
	constraintUserMeetupDate = "subscriptions_user_meetup_date_key"
)

type Repository interface {
	CreateMeetup(ctx context.Context, m *model.Meetup) (int, error)
	GetMeetupByID(ctx context.Context, id int) (*model.Meetup, error)
	ListMeetups(ctx context.Context, from, to *time.Time, limit, offset int) ([]model.Meetup, error)
	ListMeetupsByOwner(ctx context.Context, ownerID int) ([]model.Meetup, error)
	UpdateMeetup(ctx context.Context, m *model.Meetup) error
	DeleteMeetup(ctx context.Context, id int) error

	CreateSubscription(ctx context.Context, s *model.Subscription, meetupDate time.Time) (int, error)
	GetSubscriptionByID(ctx context.Context, id int) (*model.Subscription, error)
	ListUpcomingSubscriptions(ctx context.Context, userID int, now time.Time) ([]model.Subscription, error)
	HasSubscription(ctx context.Context, userID, meetupID int) (bool, error)
	HasSubscriptionAt(ctx context.Context, userID int, date time.Time) (bool, error)
	DeleteSubscription(ctx context.Context, id int) error

	GetUserByID(ctx context.Context, id int) (*model.User, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) CreateMeetup(ctx context.Context, m *model.Meetup) (int, error) {
	query := `
		INSERT INTO meetups (title, description, location, date, user_id, file_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	row := r.db.QueryRowContext(ctx, query,
		m.Title, m.Description, m.Location, m.Date, m.UserID, m.FileID,
	)

	var id int
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert meetup: %w", err)
	}
	return id, nil
}

const meetupColumns = `
	m.id, m.title, m.description, m.location, m.date, m.user_id, m.file_id,
	m.created_at, m.updated_at,
	u.name, u.email,
	f.id, f.name, f.path
`

const meetupJoins = `
	FROM meetups m
	JOIN users u ON u.id = m.user_id
	LEFT JOIN files f ON f.id = m.file_id
`

func scanMeetup(row interface{ Scan(dest ...any) error }) (*model.Meetup, error) {
	var (
		m         model.Meetup
		ownerName string
		ownerMail string
		fileID    sql.NullInt64
		fileName  sql.NullString
		filePath  sql.NullString
	)
	if err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Location, &m.Date, &m.UserID, &m.FileID,
		&m.CreatedAt, &m.UpdatedAt,
		&ownerName, &ownerMail,
		&fileID, &fileName, &filePath,
	); err != nil {
		return nil, err
	}

	m.Owner = &model.User{ID: m.UserID, Name: ownerName, Email: ownerMail}
	if fileID.Valid {
		m.Image = &model.File{ID: int(fileID.Int64), Name: fileName.String, Path: filePath.String}
	}
	return &m, nil
}

func (r *repository) GetMeetupByID(ctx context.Context, id int) (*model.Meetup, error) {
	query := `SELECT ` + meetupColumns + meetupJoins + `WHERE m.id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	m, err := scanMeetup(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMeetupNotFound
		}
		return nil, fmt.Errorf("failed to get meetup: %w", err)
	}
	return m, nil
}

func (r *repository) ListMeetups(ctx context.Context, from, to *time.Time, limit, offset int) ([]model.Meetup, error) {
	query := `SELECT ` + meetupColumns + meetupJoins
	args := []any{}
	if from != nil && to != nil {
		query += `WHERE m.date BETWEEN $1 AND $2 ORDER BY m.date ASC LIMIT $3 OFFSET $4`
		args = append(args, *from, *to, limit, offset)
	} else {
		query += `ORDER BY m.date ASC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}
	defer rows.Close()

	var meetups []model.Meetup
	for rows.Next() {
		m, err := scanMeetup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		meetups = append(meetups, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetups: %w", err)
	}

	return meetups, nil
}

func (r *repository) ListMeetupsByOwner(ctx context.Context, ownerID int) ([]model.Meetup, error) {
	query := `
		SELECT id, title, description, location, date, user_id, file_id, created_at, updated_at
		FROM meetups
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned meetups: %w", err)
	}
	defer rows.Close()

	var meetups []model.Meetup
	for rows.Next() {
		var m model.Meetup
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Description, &m.Location, &m.Date,
			&m.UserID, &m.FileID, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		meetups = append(meetups, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetups: %w", err)
	}

	return meetups, nil
}

// UpdateMeetup rewrites the meetup row and keeps the denormalized
// meetup_date on its subscriptions in sync, in one transaction.
func (r *repository) UpdateMeetup(ctx context.Context, m *model.Meetup) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	query := `
		UPDATE meetups
		SET title = $1, description = $2, location = $3, date = $4, file_id = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING id
	`

	var id int
	if err := tx.QueryRowContext(ctx, query,
		m.Title, m.Description, m.Location, m.Date, m.FileID, m.ID,
	).Scan(&id); err != nil {
		_ = tx.Rollback()
		if err == sql.ErrNoRows {
			return ErrMeetupNotFound
		}
		return fmt.Errorf("failed to update meetup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET meetup_date = $1
		WHERE meetup_id = $2
	`, m.Date, m.ID); err != nil {
		_ = tx.Rollback()
		// A subscriber already committed to another meetup at the new date;
		// the reschedule must not leave them double-booked.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraintUserMeetupDate {
			return ErrScheduleConflict
		}
		return fmt.Errorf("failed to sync subscription dates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteMeetup removes the meetup; its subscriptions go with it
// (ON DELETE CASCADE).
func (r *repository) DeleteMeetup(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meetups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meetup: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrMeetupNotFound
	}
	return nil
}

// CreateSubscription inserts the subscription together with a copy of the
// meetup's date so the unique constraints can arbitrate concurrent
// subscribers; constraint violations come back as the matching sentinel.
func (r *repository) CreateSubscription(ctx context.Context, s *model.Subscription, meetupDate time.Time) (int, error) {
	query := `
		INSERT INTO subscriptions (user_id, meetup_id, meetup_date)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	var id int
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.MeetupID, meetupDate).Scan(&id, &s.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case constraintUserMeetup:
				return 0, ErrDuplicateSubscription
			case constraintUserMeetupDate:
				return 0, ErrScheduleConflict
			}
		}
		return 0, fmt.Errorf("failed to insert subscription: %w", err)
	}
	return id, nil
}

func (r *repository) GetSubscriptionByID(ctx context.Context, id int) (*model.Subscription, error) {
	query := `
		SELECT s.id, s.user_id, s.meetup_id, s.created_at,
		       m.id, m.title, m.description, m.location, m.date, m.user_id, m.file_id,
		       m.created_at, m.updated_at
		FROM subscriptions s
		JOIN meetups m ON m.id = s.meetup_id
		WHERE s.id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var (
		s model.Subscription
		m model.Meetup
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.MeetupID, &s.CreatedAt,
		&m.ID, &m.Title, &m.Description, &m.Location, &m.Date, &m.UserID, &m.FileID,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	s.Meetup = &m
	return &s, nil
}

func (r *repository) ListUpcomingSubscriptions(ctx context.Context, userID int, now time.Time) ([]model.Subscription, error) {
	query := `
		SELECT s.id, s.user_id, s.meetup_id, s.created_at,
		       m.id, m.title, m.description, m.location, m.date, m.user_id, m.file_id,
		       m.created_at, m.updated_at,
		       u.name, u.email
		FROM subscriptions s
		JOIN meetups m ON m.id = s.meetup_id
		JOIN users u ON u.id = m.user_id
		WHERE s.user_id = $1 AND m.date > $2
		ORDER BY m.date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var (
			s         model.Subscription
			m         model.Meetup
			ownerName string
			ownerMail string
		)
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.MeetupID, &s.CreatedAt,
			&m.ID, &m.Title, &m.Description, &m.Location, &m.Date, &m.UserID, &m.FileID,
			&m.CreatedAt, &m.UpdatedAt,
			&ownerName, &ownerMail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		m.Owner = &model.User{ID: m.UserID, Name: ownerName, Email: ownerMail}
		s.Meetup = &m
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}

	return subs, nil
}

func (r *repository) HasSubscription(ctx context.Context, userID, meetupID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions WHERE user_id = $1 AND meetup_id = $2
		)
	`, userID, meetupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return exists, nil
}

func (r *repository) HasSubscriptionAt(ctx context.Context, userID int, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions WHERE user_id = $1 AND meetup_date = $2
		)
	`, userID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schedule: %w", err)
	}
	return exists, nil
}

func (r *repository) DeleteSubscription(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *repository) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
