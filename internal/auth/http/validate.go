package http

import (
	"net/mail"
	"strings"
)

// requireEmail returns a client-facing message when email is missing or
// not an address.
func requireEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "Email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "Email should be valid"
	}
	return ""
}

// firstProblem returns the first non-empty message.
func firstProblem(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}

func required(value, message string) string {
	if strings.TrimSpace(value) == "" {
		return message
	}
	return ""
}
