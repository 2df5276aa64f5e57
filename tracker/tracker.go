// Package tracker holds the job-search records: applications, interviews,
// contacts and the day-by-day program progress.
package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Application statuses.
const (
	StatusWishlist  = "wishlist"
	StatusApplied   = "applied"
	StatusInterview = "interview"
	StatusOffer     = "offer"
	StatusRejected  = "rejected"
)

// Interview kinds.
const (
	KindPhone  = "phone"
	KindTech   = "tech"
	KindOnsite = "onsite"
)

// ProgramDays is the length of the job-search program.
const ProgramDays = 50

var ErrNotFound = errors.New("not found")

// Application is one tracked job application.
type Application struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Company   string    `json:"company"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	AppliedAt time.Time `json:"applied_at,omitzero"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interview is a scheduled round for an application. CalendarEventID is set
// when the interview was synced to the user's calendar.
type Interview struct {
	ID              string    `json:"id"`
	UserID          string    `json:"-"`
	ApplicationID   string    `json:"application_id"`
	Round           int       `json:"round"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	Kind            string    `json:"kind"`
	Notes           string    `json:"notes,omitempty"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Contact is a networking contact.
type Contact struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	Name         string    `json:"name"`
	Company      string    `json:"company,omitempty"`
	Email        string    `json:"email,omitempty"`
	Relationship string    `json:"relationship,omitempty"`
	LastTouchAt  time.Time `json:"last_touch_at,omitzero"`
	CreatedAt    time.Time `json:"created_at"`
}

// DayProgress marks one day of the program complete.
type DayProgress struct {
	UserID      string    `json:"-"`
	Day         int       `json:"day"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// ApplicationRepo persists applications per user.
type ApplicationRepo interface {
	Create(ctx context.Context, app *Application) error
	Get(ctx context.Context, userID, id string) (*Application, error)
	Update(ctx context.Context, app *Application) error
	Delete(ctx context.Context, userID, id string) error
	// List returns the user's applications, newest first.
	List(ctx context.Context, userID string) ([]*Application, error)
}

// InterviewRepo persists interviews per user.
type InterviewRepo interface {
	Create(ctx context.Context, interview *Interview) error
	Get(ctx context.Context, userID, id string) (*Interview, error)
	Update(ctx context.Context, interview *Interview) error
	Delete(ctx context.Context, userID, id string) error
	ListByApplication(ctx context.Context, userID, applicationID string) ([]*Interview, error)
}

// ContactRepo persists contacts per user.
type ContactRepo interface {
	Create(ctx context.Context, contact *Contact) error
	Get(ctx context.Context, userID, id string) (*Contact, error)
	Update(ctx context.Context, contact *Contact) error
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string) ([]*Contact, error)
}

// ProgressRepo persists the user's day-by-day program state.
type ProgressRepo interface {
	Upsert(ctx context.Context, progress *DayProgress) error
	List(ctx context.Context, userID string) ([]*DayProgress, error)
}

func validStatus(status string) bool {
	switch status {
	case StatusWishlist, StatusApplied, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

func validKind(kind string) bool {
	switch kind {
	case KindPhone, KindTech, KindOnsite:
		return true
	}
	return false
}
