package types

import (
	"encoding/json"
	"time"
)

// SyncType identifies what kind of reconciliation run a session represents.
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
	SyncTypeManual      SyncType = "manual"
)

// SyncStatus is the sync session state machine. Sessions start idle, move to
// syncing on start, may pause and resume, and terminate on completed or
// failed.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusPaused    SyncStatus = "paused"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s SyncStatus) Terminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// SyncAction is a client-proposed change kind.
type SyncAction string

const (
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
	SyncActionDelete SyncAction = "delete"
)

// SyncChange is one client-proposed change carrying the client's last-known
// version. Force applies only to deletes and cascades dependency-edge
// removal from dependents.
type SyncChange struct {
	ID      string          `json:"id" binding:"required"`
	Type    OfflineDataType `json:"type"`
	Action  SyncAction      `json:"action" binding:"required"`
	Data    json.RawMessage `json:"data,omitempty"`
	Version int             `json:"version"`
	Force   bool            `json:"force,omitempty"`
}

// SyncItemSuccess records one committed change and its new server version.
type SyncItemSuccess struct {
	ID         string `json:"id"`
	NewVersion int    `json:"newVersion"`
}

// SyncItemConflict carries the current server state back to the caller on a
// version mismatch. Resolution is the caller's responsibility; the server
// never auto-merges.
type SyncItemConflict struct {
	ID            string          `json:"id"`
	ServerVersion int             `json:"serverVersion"`
	ClientVersion int             `json:"clientVersion"`
	Data          json.RawMessage `json:"data"`
}

// SyncItemError records a validation or not-found failure for one item.
type SyncItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncResult partitions a batch's outcomes. One item's conflict never blocks
// independent items in the same batch from committing.
type SyncResult struct {
	Successful []SyncItemSuccess  `json:"successful"`
	Conflicts  []SyncItemConflict `json:"conflicts"`
	Errors     []SyncItemError    `json:"errors"`
}

// SyncProgress tracks item counts for a session.
type SyncProgress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Percentage float64 `json:"percentage"`
}

// SyncError is a structured session-level error.
type SyncError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Item    string `json:"item,omitempty"`
}

// SyncStats aggregates work done across a session. Conflicts counts items
// awaiting caller resolution; Resolved counts conflicts the caller
// subsequently resubmitted successfully.
type SyncStats struct {
	Uploaded   int `json:"uploaded"`
	Downloaded int `json:"downloaded"`
	Conflicts  int `json:"conflicts"`
	Resolved   int `json:"resolved"`
}

// SyncSession is one reconciliation run over a bounded batch of offline
// items.
type SyncSession struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Type      SyncType     `json:"type"`
	Status    SyncStatus   `json:"status"`
	Progress  SyncProgress `json:"progress"`
	StartTime time.Time    `json:"startTime"`
	EndTime   *time.Time   `json:"endTime,omitempty"`
	Errors    []SyncError  `json:"errors,omitempty"`
	Stats     SyncStats    `json:"stats"`
}

// SyncControlAction is a caller-requested session transition.
type SyncControlAction string

const (
	SyncControlPause  SyncControlAction = "pause"
	SyncControlResume SyncControlAction = "resume"
	SyncControlCancel SyncControlAction = "cancel"
)

// Valid reports whether the control action is a known value.
func (a SyncControlAction) Valid() bool {
	switch a {
	case SyncControlPause, SyncControlResume, SyncControlCancel:
		return true
	}
	return false
}

// SyncRequest is the request body for a batch sync call.
type SyncRequest struct {
	Changes []SyncChange `json:"changes" binding:"required"`
}
