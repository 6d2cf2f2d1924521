package models

import (
	"fmt"
	"time"
)

// ResourceType identifies the shared asset a reservation claims.
type ResourceType string

const (
	ResourceElevator ResourceType = "elevator"
	ResourceParking  ResourceType = "parking"
	ResourceOther    ResourceType = "other"
)

// ValidResourceType reports whether rt is one of the known resource types.
func ValidResourceType(rt ResourceType) bool {
	switch rt {
	case ResourceElevator, ResourceParking, ResourceOther:
		return true
	}
	return false
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusRejected  ReservationStatus = "rejected"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

// ActiveStatuses are the statuses that count toward the no-overlap and
// one-per-unit rules.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusApproved}

// Reservation represents a resident's claim on a shared resource for a
// time window.
type Reservation struct {
	ID           int64             `json:"id"`
	UnitID       string            `json:"unit_id"`
	UserID       int64             `json:"user_id"`
	ResourceType ResourceType      `json:"resource_type"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Description  string            `json:"description,omitempty"`
	Status       ReservationStatus `json:"status"`
	AdminComment string            `json:"admin_comment,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ApprovedAt   *time.Time        `json:"approved_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// IsActive reports whether the reservation counts toward the conflict
// and unit-cardinality rules.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// IsTerminal reports whether no further status transitions are allowed.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Overlaps checks this reservation's window against [start, end).
// Half-open semantics: a window ending exactly when another starts does
// not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// Duration returns the length of the reserved window.
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// User represents an apartment resident account.
type User struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	ApartmentNumber string     `json:"apartment_number,omitempty"`
	IsAdmin         bool       `json:"is_admin"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
}

// DisplayName returns the resident's name with the apartment number when
// one is set.
func (u *User) DisplayName() string {
	if u.ApartmentNumber != "" {
		return fmt.Sprintf("%s (%s)", u.Name, u.ApartmentNumber)
	}
	return u.Name
}

// NoticeType classifies a notice.
type NoticeType string

const (
	NoticeGeneral      NoticeType = "general"
	NoticeAnnouncement NoticeType = "announcement"
	NoticeEvent        NoticeType = "event"
)

// Notice represents a building announcement.
type Notice struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	NoticeType  NoticeType `json:"notice_type"`
	IsPinned    bool       `json:"is_pinned"`
	IsImportant bool       `json:"is_important"`
	IsActive    bool       `json:"is_active"`
	ViewCount   int64      `json:"view_count"`
	AuthorID    int64      `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// IsNew reports whether the notice was created within the last week.
func (n *Notice) IsNew() bool {
	return time.Since(n.CreatedAt) < 7*24*time.Hour
}
