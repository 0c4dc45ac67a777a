package models

// Status is the lifecycle state of a Project or Stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every project status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Label returns the human-readable name of the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Role distinguishes the two kinds of users.
type Role string

const (
	RoleManager Role = "manager"
	RoleClient  Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleClient:
		return true
	}
	return false
}
