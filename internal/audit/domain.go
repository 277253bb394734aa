// Package audit records who changed what across every mutating operation
// and serves the admin timeline over it.
package audit

import "time"

// Entry is one row in audit_logs.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows the timeline query. Zero values mean no constraint.
type Filter struct {
	UserID   int64
	Entity   string
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo reports the window position of a timeline result.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
