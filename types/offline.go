package types

import (
	"encoding/json"
	"time"
)

// OfflineDataType enumerates the record kinds a client may cache offline.
type OfflineDataType string

const (
	OfflineTypeProduct  OfflineDataType = "product"
	OfflineTypeCategory OfflineDataType = "category"
	OfflineTypeVendor   OfflineDataType = "vendor"
	OfflineTypeOrder    OfflineDataType = "order"
	OfflineTypeCart     OfflineDataType = "cart"
	OfflineTypeWishlist OfflineDataType = "wishlist"
	OfflineTypeSearch   OfflineDataType = "search"
)

// Valid reports whether the offline data type is a known value.
func (t OfflineDataType) Valid() bool {
	switch t {
	case OfflineTypeProduct, OfflineTypeCategory, OfflineTypeVendor,
		OfflineTypeOrder, OfflineTypeCart, OfflineTypeWishlist, OfflineTypeSearch:
		return true
	}
	return false
}

// OfflineDataPriority orders eviction and sync precedence for cached records.
type OfflineDataPriority string

const (
	OfflinePriorityLow    OfflineDataPriority = "low"
	OfflinePriorityNormal OfflineDataPriority = "normal"
	OfflinePriorityHigh   OfflineDataPriority = "high"
)

// OfflineDataItem is a typed, versioned record in the offline store.
// Version starts at 1, increases by exactly 1 on every committed update, and
// is the sole concurrency-control token: no two successful writes may commit
// with the same (ID, Version).
type OfflineDataItem struct {
	ID           string              `json:"id"`
	UserID       string              `json:"userId"`
	Type         OfflineDataType     `json:"type"`
	Data         json.RawMessage     `json:"data"`
	Version      int                 `json:"version"`
	LastModified time.Time           `json:"lastModified"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	Priority     OfflineDataPriority `json:"priority"`
	Size         int                 `json:"size"`
	Dependencies []string            `json:"dependencies,omitempty"`
}

// Expired reports whether the item's expiry has passed at the given instant.
func (i *OfflineDataItem) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// StoreOfflineDataRequest is the request body for storing a record offline.
type StoreOfflineDataRequest struct {
	Type         OfflineDataType     `json:"type" binding:"required"`
	Data         json.RawMessage     `json:"data" binding:"required"`
	Priority     OfflineDataPriority `json:"priority,omitempty"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	Dependencies []string            `json:"dependencies,omitempty"`
}

// UpdateOfflineDataRequest carries a direct (non-batch) versioned update.
type UpdateOfflineDataRequest struct {
	Data    json.RawMessage `json:"data" binding:"required"`
	Version int             `json:"version" binding:"required"`
}
