// Package authz answers yes/no permission questions about a resolved
// identity and a resource. It holds no state and performs no I/O; the
// boundary layer resolves the viewer and the resource's ownership
// attributes, then consults the gate uniformly instead of re-deriving
// the rules at each call site.
package authz

// Viewer is the identity asking the question. A zero Viewer is an
// anonymous visitor.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// OwnerState mirrors the account state of a resource's author.
type OwnerState int

const (
	OwnerActive OwnerState = iota
	OwnerSelfDisabled
	OwnerAdminDisabled
)

// Resource carries the ownership and visibility attributes a permission
// decision depends on.
type Resource struct {
	OwnerID    string
	Public     bool
	OwnerState OwnerState
}

// Config holds the explicit extension points.
type Config struct {
	// AdminCanEdit and AdminCanDelete extend the owner-only write rules
	// to admins. Off by default; moderation tooling turns them on.
	AdminCanEdit   bool
	AdminCanDelete bool
}

// Gate evaluates permission queries. Safe for concurrent use.
type Gate struct {
	config Config
}

func NewGate(cfg Config) *Gate {
	return &Gate{config: cfg}
}

func (v Viewer) owns(r Resource) bool {
	return v.UserID != "" && v.UserID == r.OwnerID
}

// CanView grants access to public resources, to the owner, and to
// admins.
func (g *Gate) CanView(v Viewer, r Resource) bool {
	return r.Public || v.owns(r) || v.IsAdmin
}

// CanEdit is owner-only unless the admin override is configured.
func (g *Gate) CanEdit(v Viewer, r Resource) bool {
	if v.owns(r) {
		return true
	}
	return g.config.AdminCanEdit && v.IsAdmin
}

// CanDelete is owner-only unless the admin override is configured.
func (g *Gate) CanDelete(v Viewer, r Resource) bool {
	if v.owns(r) {
		return true
	}
	return g.config.AdminCanDelete && v.IsAdmin
}

// VisibleInListing decides whether a resource appears in listings and
// search results shown to v. Content by an admin-disabled author is
// hidden from everyone but admins, even when public. Content by a
// self-disabled author stays visible to the author themselves.
func (g *Gate) VisibleInListing(v Viewer, r Resource) bool {
	if v.IsAdmin {
		return g.CanView(v, r)
	}
	switch r.OwnerState {
	case OwnerAdminDisabled:
		return false
	case OwnerSelfDisabled:
		return v.owns(r)
	}
	return g.CanView(v, r)
}
