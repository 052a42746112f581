package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	anon   = Viewer{}
	owner  = Viewer{UserID: "u1"}
	other  = Viewer{UserID: "u2"}
	admin  = Viewer{UserID: "u9", IsAdmin: true}
	public = Resource{OwnerID: "u1", Public: true}
	secret = Resource{OwnerID: "u1", Public: false}
)

func TestCanView(t *testing.T) {
	gate := NewGate(Config{})

	assert.True(t, gate.CanView(anon, public))
	assert.True(t, gate.CanView(other, public))
	assert.True(t, gate.CanView(owner, secret))
	assert.True(t, gate.CanView(admin, secret))

	assert.False(t, gate.CanView(anon, secret))
	assert.False(t, gate.CanView(other, secret))
}

func TestCanEditAndDeleteAreOwnerOnly(t *testing.T) {
	gate := NewGate(Config{})

	assert.True(t, gate.CanEdit(owner, public))
	assert.True(t, gate.CanDelete(owner, public))

	for _, v := range []Viewer{anon, other, admin} {
		assert.False(t, gate.CanEdit(v, public), v.UserID)
		assert.False(t, gate.CanDelete(v, public), v.UserID)
	}
}

func TestAdminOverrideIsExplicit(t *testing.T) {
	gate := NewGate(Config{AdminCanEdit: true, AdminCanDelete: true})

	assert.True(t, gate.CanEdit(admin, public))
	assert.True(t, gate.CanDelete(admin, public))
	assert.False(t, gate.CanEdit(other, public))
}

func TestListingHidesAdminDisabledAuthors(t *testing.T) {
	gate := NewGate(Config{})
	res := Resource{OwnerID: "u1", Public: true, OwnerState: OwnerAdminDisabled}

	assert.False(t, gate.VisibleInListing(anon, res))
	assert.False(t, gate.VisibleInListing(other, res))
	assert.False(t, gate.VisibleInListing(owner, res))
	assert.True(t, gate.VisibleInListing(admin, res))
}

func TestListingSelfDisabledVisibleToAuthor(t *testing.T) {
	gate := NewGate(Config{})
	res := Resource{OwnerID: "u1", Public: true, OwnerState: OwnerSelfDisabled}

	assert.True(t, gate.VisibleInListing(owner, res))
	assert.True(t, gate.VisibleInListing(admin, res))
	assert.False(t, gate.VisibleInListing(other, res))
	assert.False(t, gate.VisibleInListing(anon, res))
}

func TestListingActiveAuthorFollowsView(t *testing.T) {
	gate := NewGate(Config{})

	assert.True(t, gate.VisibleInListing(other, public))
	assert.False(t, gate.VisibleInListing(other, secret))
	assert.True(t, gate.VisibleInListing(owner, secret))
}
