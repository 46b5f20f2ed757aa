package models

// Mode is the operator's current display mode
type Mode string

const (
	ModeWork    Mode = "work"
	ModeQueue   Mode = "queue"
	ModeInbox   Mode = "inbox"
	ModeSummary Mode = "summary"
)

// QueueFilter narrows the stop queue listing
type QueueFilter string

const (
	QueueFilterAll      QueueFilter = "all"
	QueueFilterPending  QueueFilter = "pending"
	QueueFilterComplete QueueFilter = "complete"
)

// RouteBinderState is the aggregate persisted and restored as one unit
type RouteBinderState struct {
	Stops         []Stop      `json:"stops"`
	InboxItems    []InboxItem `json:"inboxItems"`
	ActiveStopID  string      `json:"activeStopId,omitempty"`
	Mode          Mode        `json:"mode"`
	QueueFilter   QueueFilter `json:"queueFilter"`
	RouteDoneAtTs *int64      `json:"routeDoneAtTs"`
}

// RouteStats counts stops by completion
type RouteStats struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Pending  int `json:"pending"`
}
