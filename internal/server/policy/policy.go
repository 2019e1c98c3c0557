// Package policy is the single authorization gate of the server. Every
// service operation asks Authorize before touching storage, and listing
// operations ask for the visibility rules of the actor.
package policy

import (
	"slices"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
)

// Actor is the authenticated caller of an operation. A nil *Actor is an
// anonymous caller.
type Actor struct {
	UserID int64
	Name   string
	Role   models.Role
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role.IsAdmin()
}

type Action int

const (
	ActionRegisterUser Action = iota + 1
	ActionLogin
	ActionCreateNote
	ActionListNotes
	ActionViewNote
	ActionUpdateNoteStatus
	ActionAttachNoteImage
	ActionCreateOrder
	ActionListOrders
	ActionViewOrder
	ActionUpdateOrderStatus
	ActionExportOrders
	ActionAppendHistory
	ActionListHistory
)

var actionNames = map[Action]string{
	ActionRegisterUser:      "register-user",
	ActionLogin:             "login",
	ActionCreateNote:        "create-note",
	ActionListNotes:         "list-notes",
	ActionViewNote:          "view-note",
	ActionUpdateNoteStatus:  "update-note-status",
	ActionAttachNoteImage:   "attach-note-image",
	ActionCreateOrder:       "create-order",
	ActionListOrders:        "list-orders",
	ActionViewOrder:         "view-order",
	ActionUpdateOrderStatus: "update-order-status",
	ActionExportOrders:      "export-orders",
	ActionAppendHistory:     "append-history",
	ActionListHistory:       "list-history",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

var adminOnly = map[Action]bool{
	ActionRegisterUser:      true,
	ActionCreateOrder:       true,
	ActionUpdateOrderStatus: true,
	ActionExportOrders:      true,
	ActionAppendHistory:     true,
}

// Authorize decides whether actor may perform action. It returns nil,
// common.ErrNotAuthenticated or common.ErrAdminOnly. Entity state guards
// are left to the lifecycle services.
func Authorize(actor *Actor, action Action) error {
	if action == ActionLogin {
		return nil
	}
	if actor == nil {
		return common.ErrNotAuthenticated
	}
	if adminOnly[action] && !actor.IsAdmin() {
		return common.ErrAdminOnly
	}
	return nil
}

// Visibility describes which statuses an actor may see in a listing and
// which are shown when no status filter is given.
type Visibility struct {
	Default []models.Status
	Allowed []models.Status
}

func (v Visibility) Allows(s models.Status) bool {
	return slices.Contains(v.Allowed, s)
}

// Rules holds the configurable part of the visibility policy.
type Rules struct {
	// AdminSeesAllNotes makes closed notes part of the administrators'
	// default note listing.
	AdminSeesAllNotes bool
}

var active = []models.Status{models.StatusOpen, models.StatusInProgress}

// NoteVisibility returns the note statuses actor may list.
func (r Rules) NoteVisibility(actor *Actor) Visibility {
	if actor.IsAdmin() {
		if r.AdminSeesAllNotes {
			return Visibility{Default: models.AllStatuses, Allowed: models.AllStatuses}
		}
		return Visibility{Default: active, Allowed: models.AllStatuses}
	}
	return Visibility{Default: active, Allowed: active}
}

// OrderVisibility returns the order statuses actor may list. Closed orders
// are only listed when asked for explicitly.
func (r Rules) OrderVisibility(actor *Actor) Visibility {
	if actor.IsAdmin() {
		return Visibility{Default: active, Allowed: models.AllStatuses}
	}
	return Visibility{Default: active, Allowed: active}
}

// CanSee reports whether actor may observe a single entity in status s.
// Residents never observe closed entities.
func CanSee(actor *Actor, s models.Status) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin() || s != models.StatusClosed
}

// CanEditNote guards note mutations: administrators, or the note's author.
func CanEditNote(actor *Actor, note *models.Note) error {
	if actor == nil {
		return common.ErrNotAuthenticated
	}
	if actor.IsAdmin() || actor.UserID == note.AuthorID {
		return nil
	}
	return common.ErrNotNoteAuthor
}
