package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Regions tried, in order, for numbers written without a country code.
var supportedRegions = []string{
	"US",
	"IN",
	"IL",
}

// NormalizePhone returns phone in E.164 form, or "" when it is not a valid
// number in any supported region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err != nil || !phonenumbers.IsValidNumber(parsedNumber) {
			continue
		}
		return phonenumbers.Format(parsedNumber, phonenumbers.E164)
	}
	return ""
}

// NormalizeContact canonicalizes a patient contact: phone numbers become
// E.164, email addresses are lower-cased, anything else is whitespace-normalized.
func NormalizeContact(contact string) string {
	contact = TrimAndNormalize(contact)
	if contact == "" {
		return ""
	}

	if strings.Contains(contact, "@") {
		return NormalizeEmail(contact)
	}

	if phone := NormalizePhone(contact); phone != "" {
		return phone
	}
	return contact
}
