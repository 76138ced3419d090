package models

import "slices"

type UserProfile struct {
	ID       string   `bson:"id" json:"id" yaml:"id"`
	Username string   `bson:"username" json:"username" yaml:"username"`
	Email    string   `bson:"email" json:"email" yaml:"email"`
	Avatar   string   `bson:"avatar" json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Blocked  []string `bson:"blocked" json:"blocked" yaml:"blocked"`
}

// HasBlocked reports whether u has blocked the user with the given id.
func (u *UserProfile) HasBlocked(id string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Blocked, id)
}
