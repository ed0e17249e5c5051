// Package auth defines the interfaces for the users and groups which permission
// grants can be bound to. The engine never stores a "current user" anywhere; the
// actor is threaded through explicitly.
package auth

import (
	"errors"
)

type AuthDB struct {
	GroupDB
	UserDB
}

var ErrEmptyPassword = errors.New("refusing to set empty password")

// SetPassword shadows AuthDB.UserDB.SetPassword.
func (a *AuthDB) SetPassword(u User, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return a.UserDB.SetPassword(u, password)
}

// GetGroupsOf shadows AuthDB.GroupDB.GetGroupsOf.
func (a *AuthDB) GetGroupsOf(u User) ([]Group, error) {
	if u == nil {
		return nil, nil
	}
	return a.GroupDB.GetGroupsOf(u)
}
