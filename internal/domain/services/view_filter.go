package services

import (
	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

// Caller is the identity a read is made for. A nil *Caller is anonymous.
type Caller struct {
	ID   uuid.UUID       `json:"id"`
	Role models.UserRole `json:"role"`
}

// Collections is the full set of entities the view filter projects.
type Collections struct {
	Documents       []models.Document       `json:"documents"`
	Payments        []models.Payment        `json:"payments"`
	Issues          []models.Issue          `json:"issues"`
	Notifications   []models.Notification   `json:"notifications"`
	ChatMessages    []models.ChatMessage    `json:"chat_messages"`
	Scans           []models.DocumentScan   `json:"ocr_scans"`
	ReviewRequests  []models.ReviewRequest  `json:"review_requests"`
	ReviewResponses []models.ReviewResponse `json:"review_responses"`
}

// ViewPolicy decides which entities a caller may see.
type ViewPolicy interface {
	Name() string
	CanSeeRequest(request *models.ReviewRequest) bool
	CanSeeScan(scan *models.DocumentScan) bool
	Filter(all *Collections) *Collections
}

// PolicyFor picks the policy for a caller. Tenants and landlords are
// self-scoped. Companies and anonymous callers see everything; whether
// company accounts should instead be limited to their own properties is
// still open, so the broader tier is kept as-is.
func PolicyFor(caller *Caller) ViewPolicy {
	if caller != nil && (caller.Role == models.UserRoleTenant || caller.Role == models.UserRoleLandlord) {
		return selfScoped{id: caller.ID}
	}
	return unscoped{}
}

// FilterCollections returns the subset of all that caller may see. It is a
// pure projection: filtering twice gives the same result as filtering once.
func FilterCollections(all *Collections, caller *Caller) *Collections {
	if all == nil {
		all = &Collections{}
	}
	return PolicyFor(caller).Filter(all)
}

type selfScoped struct {
	id uuid.UUID
}

func (p selfScoped) Name() string { return "self_scoped" }

func (p selfScoped) CanSeeRequest(request *models.ReviewRequest) bool {
	return request.Involves(p.id)
}

func (p selfScoped) CanSeeScan(scan *models.DocumentScan) bool {
	return scan.UserID == p.id
}

func (p selfScoped) Filter(all *Collections) *Collections {
	requests := filterSlice(all.ReviewRequests, p.CanSeeRequest)
	visible := make(map[uuid.UUID]bool, len(requests))
	for _, request := range requests {
		visible[request.ID] = true
	}

	return &Collections{
		Documents: filterSlice(all.Documents, func(d *models.Document) bool {
			return d.UserID == p.id
		}),
		Payments: filterSlice(all.Payments, func(pm *models.Payment) bool {
			return pm.UserID == p.id
		}),
		Issues: filterSlice(all.Issues, func(i *models.Issue) bool {
			return i.RaisedBy == p.id
		}),
		Notifications: filterSlice(all.Notifications, func(n *models.Notification) bool {
			return n.RecipientID == p.id
		}),
		ChatMessages: filterSlice(all.ChatMessages, func(m *models.ChatMessage) bool {
			return m.FromUserID == p.id || m.ToUserID == p.id
		}),
		Scans:          filterSlice(all.Scans, p.CanSeeScan),
		ReviewRequests: requests,
		ReviewResponses: filterSlice(all.ReviewResponses, func(r *models.ReviewResponse) bool {
			return visible[r.RequestID]
		}),
	}
}

type unscoped struct{}

func (unscoped) Name() string { return "unscoped" }

func (unscoped) CanSeeRequest(*models.ReviewRequest) bool { return true }

func (unscoped) CanSeeScan(*models.DocumentScan) bool { return true }

func (unscoped) Filter(all *Collections) *Collections {
	return &Collections{
		Documents:       copySlice(all.Documents),
		Payments:        copySlice(all.Payments),
		Issues:          copySlice(all.Issues),
		Notifications:   copySlice(all.Notifications),
		ChatMessages:    copySlice(all.ChatMessages),
		Scans:           copySlice(all.Scans),
		ReviewRequests:  copySlice(all.ReviewRequests),
		ReviewResponses: copySlice(all.ReviewResponses),
	}
}

func filterSlice[T any](items []T, keep func(*T) bool) []T {
	out := make([]T, 0, len(items))
	for i := range items {
		if keep(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

func copySlice[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
