package models

import "slices"

// Capability codes stored in User.Permissions. Admins implicitly hold all of them.
const (
	PermAccessAssets = "assets.access" // enter the file manager section
	PermCreateAssets = "assets.create"
	PermEditAssets   = "assets.edit"
	PermDeleteAssets = "assets.delete"
)

// AllPermissions lists every capability code known to the application.
var AllPermissions = []string{PermAccessAssets, PermCreateAssets, PermEditAssets, PermDeleteAssets}

// Can reports whether the user holds the capability code.
func (u *User) Can(code string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin {
		return true
	}
	return slices.Contains(u.Permissions.Data(), code)
}

// CanCreateAsset is the class level create check for folders and files.
func CanCreateAsset(u *User) bool {
	return u.Can(PermCreateAssets)
}

func (a *Asset) owns(u *User) bool {
	return u != nil && a.OwnerID != 0 && a.OwnerID == u.ID
}

// CanView reports whether u may see the record in listings and downloads.
func (a *Asset) CanView(u *User) bool {
	if !u.Can(PermAccessAssets) {
		return false
	}
	if !a.Private {
		return true
	}
	return u.IsAdmin || a.owns(u)
}

func (a *Asset) CanEdit(u *User) bool {
	if !a.CanView(u) {
		return false
	}
	return u.Can(PermEditAssets) || a.owns(u)
}

func (a *Asset) CanDelete(u *User) bool {
	if !a.CanView(u) {
		return false
	}
	return u.Can(PermDeleteAssets) || a.owns(u)
}

// CanAddChildren reports whether u may create folders or upload files below a.
// Files never accept children.
func (a *Asset) CanAddChildren(u *User) bool {
	return a.IsFolder() && a.CanEdit(u)
}
