package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidTransition is returned when an action is not allowed from the listing's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrReasonRequired is returned when a listing is rejected without a reason.
var ErrReasonRequired = errors.New("rejection reason is required")

// Kind distinguishes the two advertisement types that share the listing base.
type Kind string

const (
	KindService Kind = "service"
	KindAd      Kind = "ad"
)

// Kinds lists every listing kind in a stable order.
var Kinds = []Kind{KindService, KindAd}

// ParseKind accepts both singular ("service") and plural ("services") forms.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "service", "services":
		return KindService, true
	case "ad", "ads":
		return KindAd, true
	}
	return "", false
}

func (k Kind) Valid() bool { return k == KindService || k == KindAd }

// Table is the table holding listings of this kind.
func (k Kind) Table() string {
	if k == KindAd {
		return "ads"
	}
	return "services"
}

// JoinTable links listings of this kind to their taxonomy nodes.
func (k Kind) JoinTable() string {
	if k == KindAd {
		return "ad_types"
	}
	return "service_categories"
}

// Plural is used in URLs.
func (k Kind) Plural() string { return k.Table() }

// Taxonomy returns which tree classifies this kind: categories for services, types for ads.
func (k Kind) Taxonomy() TaxonomyKind {
	if k == KindAd {
		return TaxonomyType
	}
	return TaxonomyCategory
}

// Status is the moderation lifecycle state of a listing.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusModeration Status = "moderation"
	StatusPublished  Status = "published"
	StatusHidden     Status = "hidden"
	StatusCancelled  Status = "cancelled"
)

// Action is a lifecycle operation requested through the API.
type Action string

const (
	ActionModerate Action = "moderate"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionHide     Action = "hide"
	ActionPublish  Action = "publish"
	ActionCancel   Action = "cancel"
)

type transition struct {
	from []Status
	to   Status
}

var transitions = map[Action]transition{
	ActionModerate: {from: []Status{StatusDraft, StatusCancelled}, to: StatusModeration},
	ActionApprove:  {from: []Status{StatusModeration}, to: StatusPublished},
	ActionReject:   {from: []Status{StatusModeration}, to: StatusDraft},
	ActionHide:     {from: []Status{StatusPublished}, to: StatusHidden},
	ActionPublish:  {from: []Status{StatusHidden}, to: StatusPublished},
	ActionCancel:   {from: []Status{StatusDraft, StatusModeration, StatusPublished, StatusHidden}, to: StatusCancelled},
}

// ParseAction validates an action name taken from a route.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := transitions[a]
	return a, ok
}

// StaffOnly reports whether the action belongs to moderators.
func (a Action) StaffOnly() bool { return a == ActionApprove || a == ActionReject }

// ClearsFavorites reports whether the action removes the listing from everyone's favorites.
func (a Action) ClearsFavorites() bool { return a == ActionHide || a == ActionCancel }

// Target returns the status the action leads to.
func (a Action) Target() Status { return transitions[a].to }

// CanApply reports whether action is allowed from status s.
func (a Action) CanApply(s Status) bool {
	t, ok := transitions[a]
	if !ok {
		return false
	}
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

// Listing is the advertisement base shared by services and ads.
type Listing struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"kind"`
	ProviderID      string     `json:"provider_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Address         string     `json:"address"`
	Price           *float64   `json:"price,omitempty"`
	Status          Status     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	TaxonomyIDs     []string   `json:"taxonomy_ids"`
	Images          []Image    `json:"images,omitempty"`
	Rating          float64    `json:"rating"`
	CommentsCount   int        `json:"comments_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// Apply moves the listing through the lifecycle. It returns the previous status.
func (l *Listing) Apply(a Action, reason string, now time.Time) (Status, error) {
	from := l.Status
	if !a.CanApply(from) {
		return from, ErrInvalidTransition
	}
	if a == ActionReject {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return from, ErrReasonRequired
		}
		l.RejectionReason = reason
	}
	if a == ActionApprove {
		l.RejectionReason = ""
		if l.PublishedAt == nil {
			t := now
			l.PublishedAt = &t
		}
	}
	l.Status = a.Target()
	l.UpdatedAt = now
	return from, nil
}

// IsVisible reports whether the listing is shown to the public.
func (l *Listing) IsVisible() bool { return l.Status == StatusPublished }

// OwnedBy reports whether userID is the provider.
func (l *Listing) OwnedBy(userID string) bool { return userID != "" && l.ProviderID == userID }

// ListingPatch carries the editable content of a listing. Nil fields are left unchanged.
type ListingPatch struct {
	Title       *string
	Description *string
	Address     *string
	Price       *float64
	ClearPrice  bool
	TaxonomyIDs []string
}

// ApplyPatch updates content and sends a published or hidden listing back to moderation.
// It reports whether the status changed.
func (l *Listing) ApplyPatch(p ListingPatch, now time.Time) bool {
	changed := false
	if p.Title != nil && *p.Title != l.Title {
		l.Title = *p.Title
		changed = true
	}
	if p.Description != nil && *p.Description != l.Description {
		l.Description = *p.Description
		changed = true
	}
	if p.Address != nil && *p.Address != l.Address {
		l.Address = *p.Address
		changed = true
	}
	if p.ClearPrice && l.Price != nil {
		l.Price = nil
		changed = true
	} else if p.Price != nil && (l.Price == nil || *l.Price != *p.Price) {
		v := *p.Price
		l.Price = &v
		changed = true
	}
	if p.TaxonomyIDs != nil && !sameSet(p.TaxonomyIDs, l.TaxonomyIDs) {
		l.TaxonomyIDs = p.TaxonomyIDs
		changed = true
	}
	if !changed {
		return false
	}
	l.UpdatedAt = now
	if l.Status == StatusPublished || l.Status == StatusHidden {
		l.Status = StatusModeration
		return true
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			return false
		}
	}
	return true
}

// Image is a picture attached to a listing and stored in object storage.
type Image struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	Kind        Kind      `json:"kind"`
	ObjectKey   string    `json:"-"`
	URL         string    `json:"url,omitempty"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
