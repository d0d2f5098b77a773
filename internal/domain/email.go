package domain

import "strings"

// AliasOf returns the local part of an email address.
func AliasOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at]
}

// CountryOf returns the top-level domain of an email address, which the
// directory uses as the employee's country ("no" for x@company.no).
func CountryOf(email string) string {
	at := strings.LastIndex(email, "@")
	dot := strings.LastIndex(email, ".")
	if at < 0 || dot < at {
		return ""
	}
	return email[dot+1:]
}
