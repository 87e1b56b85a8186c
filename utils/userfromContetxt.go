package utils

import (
	"net/http"
	"slices"

	"spicery/globals"
)

func GetUserIDFromRequest(r *http.Request) string {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func GetRolesFromRequest(r *http.Request) []string {
	roles, _ := r.Context().Value(globals.RoleKey).([]string)
	return roles
}

// HasRole reports whether the authenticated caller carries role.
func HasRole(r *http.Request, role string) bool {
	return slices.Contains(GetRolesFromRequest(r), role)
}

func IsAdmin(r *http.Request) bool {
	return HasRole(r, globals.RoleAdmin)
}
