package models

import "strconv"

// IdentityKind tags the variant held by an Identity.
type IdentityKind int

const (
	IdentityAnonymous IdentityKind = iota
	IdentityUser
	IdentityVisitor
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityUser:
		return "user"
	case IdentityVisitor:
		return "visitor"
	default:
		return "anonymous"
	}
}

// Identity is the resolved caller of a request. Exactly one of UserID or
// VisitorID is meaningful, selected by Kind.
//
// PendingVisitorID is only set for user identities whose request still
// carried a visitor cookie; those favorites are waiting to be merged and
// the visitor is never treated as an owner in that request.
type Identity struct {
	Kind             IdentityKind
	UserID           int64
	VisitorID        string
	PendingVisitorID string
}

func Anonymous() Identity { return Identity{Kind: IdentityAnonymous} }

func UserIdentity(userID int64) Identity {
	return Identity{Kind: IdentityUser, UserID: userID}
}

func VisitorIdentity(visitorID string) Identity {
	return Identity{Kind: IdentityVisitor, VisitorID: visitorID}
}

func (i Identity) IsUser() bool      { return i.Kind == IdentityUser }
func (i Identity) IsVisitor() bool   { return i.Kind == IdentityVisitor }
func (i Identity) IsAnonymous() bool { return i.Kind == IdentityAnonymous }

// Owner returns the favorites owner for the identity. Anonymous callers own
// nothing.
func (i Identity) Owner() (Owner, bool) {
	switch i.Kind {
	case IdentityUser:
		return UserOwner{ID: i.UserID}, true
	case IdentityVisitor:
		return VisitorOwner{Token: i.VisitorID}, true
	default:
		return nil, false
	}
}

// Owner identifies whose favorites a ledger operation touches. It is
// implemented only by UserOwner and VisitorOwner.
type Owner interface {
	// Column is the favorites column holding the owner key.
	Column() string
	// Key is the value stored in Column.
	Key() any
	String() string
	isOwner()
}

type UserOwner struct {
	ID int64
}

func (UserOwner) Column() string   { return "user_id" }
func (o UserOwner) Key() any       { return o.ID }
func (o UserOwner) String() string { return "user:" + strconv.FormatInt(o.ID, 10) }
func (UserOwner) isOwner()         {}

type VisitorOwner struct {
	Token string
}

func (VisitorOwner) Column() string   { return "visitor_id" }
func (o VisitorOwner) Key() any       { return o.Token }
func (o VisitorOwner) String() string { return "visitor:" + o.Token }
func (VisitorOwner) isOwner()         {}
