package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jobpath/jobpath-server/calendar"
	apperrors "github.com/jobpath/jobpath-server/internal/errors"
)

const interviewEventLength = time.Hour

// CalendarSync creates calendar events for scheduled interviews. Satisfied
// by the calendar client; nil disables syncing.
type CalendarSync interface {
	CreateEvent(ctx context.Context, userID, calendarID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error
}

// NewInterview is the input for scheduling an interview round.
type NewInterview struct {
	ApplicationID string    `json:"application_id"`
	Round         int       `json:"round"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Kind          string    `json:"kind"`
	Notes         string    `json:"notes"`
	SyncCalendar  bool      `json:"sync_calendar"`
}

// Service validates and persists the job-search records.
type Service struct {
	apps       ApplicationRepo
	interviews InterviewRepo
	contacts   ContactRepo
	progress   ProgressRepo
	cal        CalendarSync
	nowTime    func() time.Time
}

type Option func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithCalendarSync enables best-effort calendar syncing of interviews.
func WithCalendarSync(cal CalendarSync) Option {
	return func(s *Service) {
		s.cal = cal
	}
}

func NewService(apps ApplicationRepo, interviews InterviewRepo, contacts ContactRepo, progress ProgressRepo, options ...Option) *Service {
	s := &Service{
		apps:       apps,
		interviews: interviews,
		contacts:   contacts,
		progress:   progress,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CreateApplication validates and stores a new application. An empty status
// defaults to wishlist.
func (s *Service) CreateApplication(ctx context.Context, userID string, app *Application) (*Application, error) {
	if app.Company == "" || app.Role == "" {
		return nil, apperrors.New(apperrors.KindValidation, "company and role are required")
	}
	if app.Status == "" {
		app.Status = StatusWishlist
	}
	if !validStatus(app.Status) {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown status %q", app.Status))
	}

	now := s.nowTime()
	app.ID = uuid.NewString()
	app.UserID = userID
	app.CreatedAt = now
	app.UpdatedAt = now
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, errors.Wrap(err, "[CreateApplication] storing application")
	}
	return app, nil
}

func (s *Service) GetApplication(ctx context.Context, userID, id string) (*Application, error) {
	app, err := s.apps.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "application not found")
		}
		return nil, errors.Wrap(err, "[GetApplication] lookup")
	}
	return app, nil
}

func (s *Service) ListApplications(ctx context.Context, userID string) ([]*Application, error) {
	apps, err := s.apps.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[ListApplications] listing")
	}
	return apps, nil
}

// UpdateApplication applies the mutable fields onto the stored record.
func (s *Service) UpdateApplication(ctx context.Context, userID, id string, update *Application) (*Application, error) {
	app, err := s.GetApplication(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Status != "" {
		if !validStatus(update.Status) {
			return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown status %q", update.Status))
		}
		app.Status = update.Status
	}
	if update.Company != "" {
		app.Company = update.Company
	}
	if update.Role != "" {
		app.Role = update.Role
	}
	if update.Notes != "" {
		app.Notes = update.Notes
	}
	if !update.AppliedAt.IsZero() {
		app.AppliedAt = update.AppliedAt
	}
	app.UpdatedAt = s.nowTime()

	if err := s.apps.Update(ctx, app); err != nil {
		return nil, errors.Wrap(err, "[UpdateApplication] storing")
	}
	return app, nil
}

func (s *Service) DeleteApplication(ctx context.Context, userID, id string) error {
	if err := s.apps.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.New(apperrors.KindNotFound, "application not found")
		}
		return errors.Wrap(err, "[DeleteApplication] deleting")
	}
	return nil
}

// ScheduleInterview validates the round against its application and stores
// it. Applications in a terminal state accept no further interviews. With
// SyncCalendar set, a matching calendar event is created best effort; a
// sync failure is logged but never fails the write.
func (s *Service) ScheduleInterview(ctx context.Context, userID string, input *NewInterview) (*Interview, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.New(apperrors.KindValidation, "application ID is required")
	}
	if input.ScheduledAt.IsZero() {
		return nil, apperrors.New(apperrors.KindValidation, "scheduled time is required")
	}
	if !validKind(input.Kind) {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown interview kind %q", input.Kind))
	}

	app, err := s.GetApplication(ctx, userID, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status == StatusRejected || app.Status == StatusOffer {
		return nil, apperrors.New(apperrors.KindValidation, "application is closed")
	}

	round := input.Round
	if round <= 0 {
		existing, err := s.interviews.ListByApplication(ctx, userID, app.ID)
		if err != nil {
			return nil, errors.Wrap(err, "[ScheduleInterview] listing rounds")
		}
		round = len(existing) + 1
	}

	interview := &Interview{
		ID:            uuid.NewString(),
		UserID:        userID,
		ApplicationID: app.ID,
		Round:         round,
		ScheduledAt:   input.ScheduledAt,
		Kind:          input.Kind,
		Notes:         input.Notes,
		CreatedAt:     s.nowTime(),
	}

	if input.SyncCalendar && s.cal != nil {
		event, err := s.cal.CreateEvent(ctx, userID, calendar.PrimaryCalendar, &calendar.Event{
			Summary:     fmt.Sprintf("%s interview: %s (%s)", interview.Kind, app.Company, app.Role),
			Description: interview.Notes,
			Start:       &calendar.EventTime{DateTime: interview.ScheduledAt.Format(time.RFC3339)},
			End:         &calendar.EventTime{DateTime: interview.ScheduledAt.Add(interviewEventLength).Format(time.RFC3339)},
		})
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("calendar sync failed for interview")
		} else {
			interview.CalendarEventID = event.ID
		}
	}

	if err := s.interviews.Create(ctx, interview); err != nil {
		return nil, errors.Wrap(err, "[ScheduleInterview] storing interview")
	}
	return interview, nil
}

// UpdateInterview applies the mutable fields onto the stored round.
func (s *Service) UpdateInterview(ctx context.Context, userID, id string, update *Interview) (*Interview, error) {
	interview, err := s.interviews.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "interview not found")
		}
		return nil, errors.Wrap(err, "[UpdateInterview] lookup")
	}

	if update.Kind != "" {
		if !validKind(update.Kind) {
			return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown interview kind %q", update.Kind))
		}
		interview.Kind = update.Kind
	}
	if !update.ScheduledAt.IsZero() {
		interview.ScheduledAt = update.ScheduledAt
	}
	if update.Round > 0 {
		interview.Round = update.Round
	}
	if update.Notes != "" {
		interview.Notes = update.Notes
	}

	if err := s.interviews.Update(ctx, interview); err != nil {
		return nil, errors.Wrap(err, "[UpdateInterview] storing")
	}
	return interview, nil
}

func (s *Service) ListInterviews(ctx context.Context, userID, applicationID string) ([]*Interview, error) {
	interviews, err := s.interviews.ListByApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "[ListInterviews] listing")
	}
	return interviews, nil
}

// CancelInterview deletes the interview and, best effort, its synced
// calendar event.
func (s *Service) CancelInterview(ctx context.Context, userID, id string) error {
	interview, err := s.interviews.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.New(apperrors.KindNotFound, "interview not found")
		}
		return errors.Wrap(err, "[CancelInterview] lookup")
	}

	if interview.CalendarEventID != "" && s.cal != nil {
		if err := s.cal.DeleteEvent(ctx, userID, calendar.PrimaryCalendar, interview.CalendarEventID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("calendar event removal failed")
		}
	}

	if err := s.interviews.Delete(ctx, userID, id); err != nil {
		return errors.Wrap(err, "[CancelInterview] deleting")
	}
	return nil
}

func (s *Service) CreateContact(ctx context.Context, userID string, contact *Contact) (*Contact, error) {
	if contact.Name == "" {
		return nil, apperrors.New(apperrors.KindValidation, "contact name is required")
	}

	contact.ID = uuid.NewString()
	contact.UserID = userID
	contact.CreatedAt = s.nowTime()
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, errors.Wrap(err, "[CreateContact] storing contact")
	}
	return contact, nil
}

func (s *Service) ListContacts(ctx context.Context, userID string) ([]*Contact, error) {
	contacts, err := s.contacts.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[ListContacts] listing")
	}
	return contacts, nil
}

func (s *Service) UpdateContact(ctx context.Context, userID, id string, update *Contact) (*Contact, error) {
	contact, err := s.contacts.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "contact not found")
		}
		return nil, errors.Wrap(err, "[UpdateContact] lookup")
	}

	if update.Name != "" {
		contact.Name = update.Name
	}
	if update.Company != "" {
		contact.Company = update.Company
	}
	if update.Email != "" {
		contact.Email = update.Email
	}
	if update.Relationship != "" {
		contact.Relationship = update.Relationship
	}
	if !update.LastTouchAt.IsZero() {
		contact.LastTouchAt = update.LastTouchAt
	}

	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, errors.Wrap(err, "[UpdateContact] storing")
	}
	return contact, nil
}

func (s *Service) DeleteContact(ctx context.Context, userID, id string) error {
	if err := s.contacts.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.New(apperrors.KindNotFound, "contact not found")
		}
		return errors.Wrap(err, "[DeleteContact] deleting")
	}
	return nil
}

// SetDayProgress marks a program day complete or not.
func (s *Service) SetDayProgress(ctx context.Context, userID string, day int, completed bool) (*DayProgress, error) {
	if day < 1 || day > ProgramDays {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("day must be between 1 and %d", ProgramDays))
	}

	progress := &DayProgress{
		UserID:    userID,
		Day:       day,
		Completed: completed,
	}
	if completed {
		progress.CompletedAt = s.nowTime()
	}
	if err := s.progress.Upsert(ctx, progress); err != nil {
		return nil, errors.Wrap(err, "[SetDayProgress] storing")
	}
	return progress, nil
}

func (s *Service) ListDayProgress(ctx context.Context, userID string) ([]*DayProgress, error) {
	days, err := s.progress.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[ListDayProgress] listing")
	}
	return days, nil
}
