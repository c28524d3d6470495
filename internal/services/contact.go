package services

import (
	"fmt"
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// ErrContactInvalid indicates unusable contact details.
var ErrContactInvalid = fmt.Errorf("%w: contact", ErrSessionInvalidInput)

const (
	maxContactNameLength    = 200
	maxContactEmailLength   = 320
	maxContactPhoneLength   = 40
	maxContactCompanyLength = 200
	maxContactMessageLength = 5000
)

var contactPolicy = bluemonday.StrictPolicy()

// sanitizeContact strips markup, trims and length-checks each field. Email, when present, must
// parse as a single address. complete additionally requires name and email.
func sanitizeContact(contact domain.Contact, complete bool) (domain.Contact, error) {
	out := domain.Contact{
		Name:    cleanContactField(contact.Name),
		Email:   cleanContactField(contact.Email),
		Phone:   cleanContactField(contact.Phone),
		Company: cleanContactField(contact.Company),
		Message: cleanContactField(contact.Message),
	}

	var problems []string
	checkLength := func(field, value string, limit int) {
		if utf8.RuneCountInString(value) > limit {
			problems = append(problems, fmt.Sprintf("%s exceeds %d characters", field, limit))
		}
	}
	checkLength("name", out.Name, maxContactNameLength)
	checkLength("email", out.Email, maxContactEmailLength)
	checkLength("phone", out.Phone, maxContactPhoneLength)
	checkLength("company", out.Company, maxContactCompanyLength)
	checkLength("message", out.Message, maxContactMessageLength)

	if out.Email != "" {
		addr, err := mail.ParseAddress(out.Email)
		if err != nil {
			problems = append(problems, "email is not a valid address")
		} else {
			out.Email = strings.ToLower(addr.Address)
		}
	}
	if complete {
		if out.Name == "" {
			problems = append(problems, "name is required")
		}
		if out.Email == "" {
			problems = append(problems, "email is required")
		}
	}

	if len(problems) > 0 {
		return domain.Contact{}, fmt.Errorf("%w: %s", ErrContactInvalid, strings.Join(problems, "; "))
	}
	return out, nil
}

func cleanContactField(value string) string {
	// Values are stored as plain text, not HTML.
	return strings.TrimSpace(html.UnescapeString(contactPolicy.Sanitize(value)))
}
