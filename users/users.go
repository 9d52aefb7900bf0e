// Package users holds the fixed set of household members allowed to book
// the house. The set is loaded once at startup from a JSON file mapping
// user name to role and calendar color.
package users

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// DefaultColor is used for titles without a configured color.
const DefaultColor = "blue"

// User is one known member of the household.
type User struct {
	Role     string `json:"role"`
	Color    string `json:"color"`
	GoogleID string `json:"googleId,omitempty"`
}

// Directory is an immutable name-to-user lookup.
type Directory struct {
	users map[string]User
}

// Load reads a directory from a JSON file of the form
//
//	{"alice": {"role": "admin", "color": "red"}, ...}
func Load(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	var parsed map[string]User
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("users file %s defines no users", path)
	}

	return FromMap(parsed), nil
}

// FromMap builds a directory from an in-memory user set.
func FromMap(parsed map[string]User) *Directory {
	users := make(map[string]User, len(parsed))
	for name, user := range parsed {
		users[name] = user
	}
	return &Directory{users: users}
}

// IsValid reports whether name is a known user.
func (d *Directory) IsValid(name string) bool {
	_, ok := d.users[name]
	return ok
}

// Get returns the user with the given name.
func (d *Directory) Get(name string) (User, bool) {
	user, ok := d.users[name]
	return user, ok
}

// Role returns the role of the named user.
func (d *Directory) Role(name string) (string, bool) {
	user, ok := d.users[name]
	if !ok {
		return "", false
	}
	return user.Role, true
}

// Color returns the calendar color for the named user, or DefaultColor for
// unknown users or users without one.
func (d *Directory) Color(name string) string {
	user, ok := d.users[name]
	if !ok || user.Color == "" {
		return DefaultColor
	}
	return user.Color
}

// Names returns all user names in sorted order.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.users))
	for name := range d.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
