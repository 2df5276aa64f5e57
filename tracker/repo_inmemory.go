package tracker

import (
	"context"
	"sort"
	"sync"
)

// InMemoryApplicationRepo keeps applications in a process-local map.
type InMemoryApplicationRepo struct {
	mutex sync.RWMutex
	apps  map[string]Application
}

func NewInMemoryApplicationRepo() *InMemoryApplicationRepo {
	return &InMemoryApplicationRepo{apps: make(map[string]Application)}
}

func (r *InMemoryApplicationRepo) Create(_ context.Context, app *Application) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.apps[app.ID] = *app
	return nil
}

func (r *InMemoryApplicationRepo) Get(_ context.Context, userID, id string) (*Application, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	app, ok := r.apps[id]
	if !ok || app.UserID != userID {
		return nil, ErrNotFound
	}
	appCopy := app
	return &appCopy, nil
}

func (r *InMemoryApplicationRepo) Update(_ context.Context, app *Application) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	existing, ok := r.apps[app.ID]
	if !ok || existing.UserID != app.UserID {
		return ErrNotFound
	}
	r.apps[app.ID] = *app
	return nil
}

func (r *InMemoryApplicationRepo) Delete(_ context.Context, userID, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	app, ok := r.apps[id]
	if !ok || app.UserID != userID {
		return ErrNotFound
	}
	delete(r.apps, id)
	return nil
}

func (r *InMemoryApplicationRepo) List(_ context.Context, userID string) ([]*Application, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var apps []*Application
	for _, app := range r.apps {
		if app.UserID != userID {
			continue
		}
		appCopy := app
		apps = append(apps, &appCopy)
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps, nil
}

// InMemoryInterviewRepo keeps interviews in a process-local map.
type InMemoryInterviewRepo struct {
	mutex      sync.RWMutex
	interviews map[string]Interview
}

func NewInMemoryInterviewRepo() *InMemoryInterviewRepo {
	return &InMemoryInterviewRepo{interviews: make(map[string]Interview)}
}

func (r *InMemoryInterviewRepo) Create(_ context.Context, interview *Interview) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.interviews[interview.ID] = *interview
	return nil
}

func (r *InMemoryInterviewRepo) Get(_ context.Context, userID, id string) (*Interview, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	interview, ok := r.interviews[id]
	if !ok || interview.UserID != userID {
		return nil, ErrNotFound
	}
	interviewCopy := interview
	return &interviewCopy, nil
}

func (r *InMemoryInterviewRepo) Update(_ context.Context, interview *Interview) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	existing, ok := r.interviews[interview.ID]
	if !ok || existing.UserID != interview.UserID {
		return ErrNotFound
	}
	r.interviews[interview.ID] = *interview
	return nil
}

func (r *InMemoryInterviewRepo) Delete(_ context.Context, userID, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	interview, ok := r.interviews[id]
	if !ok || interview.UserID != userID {
		return ErrNotFound
	}
	delete(r.interviews, id)
	return nil
}

func (r *InMemoryInterviewRepo) ListByApplication(_ context.Context, userID, applicationID string) ([]*Interview, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var interviews []*Interview
	for _, interview := range r.interviews {
		if interview.UserID != userID || interview.ApplicationID != applicationID {
			continue
		}
		interviewCopy := interview
		interviews = append(interviews, &interviewCopy)
	}
	sort.Slice(interviews, func(i, j int) bool {
		return interviews[i].ScheduledAt.Before(interviews[j].ScheduledAt)
	})
	return interviews, nil
}

// InMemoryContactRepo keeps contacts in a process-local map.
type InMemoryContactRepo struct {
	mutex    sync.RWMutex
	contacts map[string]Contact
}

func NewInMemoryContactRepo() *InMemoryContactRepo {
	return &InMemoryContactRepo{contacts: make(map[string]Contact)}
}

func (r *InMemoryContactRepo) Create(_ context.Context, contact *Contact) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.contacts[contact.ID] = *contact
	return nil
}

func (r *InMemoryContactRepo) Get(_ context.Context, userID, id string) (*Contact, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	contact, ok := r.contacts[id]
	if !ok || contact.UserID != userID {
		return nil, ErrNotFound
	}
	contactCopy := contact
	return &contactCopy, nil
}

func (r *InMemoryContactRepo) Update(_ context.Context, contact *Contact) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	existing, ok := r.contacts[contact.ID]
	if !ok || existing.UserID != contact.UserID {
		return ErrNotFound
	}
	r.contacts[contact.ID] = *contact
	return nil
}

func (r *InMemoryContactRepo) Delete(_ context.Context, userID, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	contact, ok := r.contacts[id]
	if !ok || contact.UserID != userID {
		return ErrNotFound
	}
	delete(r.contacts, id)
	return nil
}

func (r *InMemoryContactRepo) List(_ context.Context, userID string) ([]*Contact, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var contacts []*Contact
	for _, contact := range r.contacts {
		if contact.UserID != userID {
			continue
		}
		contactCopy := contact
		contacts = append(contacts, &contactCopy)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Name < contacts[j].Name
	})
	return contacts, nil
}

// InMemoryProgressRepo keeps program progress in a process-local map keyed
// by user and day.
type InMemoryProgressRepo struct {
	mutex    sync.RWMutex
	progress map[string]map[int]DayProgress
}

func NewInMemoryProgressRepo() *InMemoryProgressRepo {
	return &InMemoryProgressRepo{progress: make(map[string]map[int]DayProgress)}
}

func (r *InMemoryProgressRepo) Upsert(_ context.Context, progress *DayProgress) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	days, ok := r.progress[progress.UserID]
	if !ok {
		days = make(map[int]DayProgress)
		r.progress[progress.UserID] = days
	}
	days[progress.Day] = *progress
	return nil
}

func (r *InMemoryProgressRepo) List(_ context.Context, userID string) ([]*DayProgress, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var days []*DayProgress
	for _, day := range r.progress[userID] {
		dayCopy := day
		days = append(days, &dayCopy)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Day < days[j].Day
	})
	return days, nil
}
