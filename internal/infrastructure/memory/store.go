// Package memory provides process-local implementations of every repository.
// It backs the `memory` store backend and the service tests.
package memory

// Store groups the in-memory repositories.
type Store struct {
	Announcements *AnnouncementRepository
	ColiSpaces    *ColiSpaceRepository
	Profiles      *ProfileRepository
	Notifications *NotificationRepository
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Announcements: NewAnnouncementRepository(),
		ColiSpaces:    NewColiSpaceRepository(),
		Profiles:      NewProfileRepository(),
		Notifications: NewNotificationRepository(),
	}
}
