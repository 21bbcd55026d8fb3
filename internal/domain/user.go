// Package domain contains entities without logic, just meta-data.
package domain

const MaxUsernameLen = 36

type UserID string

// DefaultUsername is used when a join envelope carries no username.
func DefaultUsername(id UserID) string {
	return "User-" + string(id)
}

// ClampUsername truncates oversized names instead of rejecting them;
// display names are cosmetic and never used as keys.
func ClampUsername(name string) string {
	if len(name) > MaxUsernameLen {
		return name[:MaxUsernameLen]
	}
	return name
}
