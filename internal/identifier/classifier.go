package identifier

import (
	"strings"

	"github.com/yourorg/bookinglean/internal/domain"
)

// Classify inspects a raw user-entered identifier and reports whether it
// is email-shaped or national-ID-shaped. Classification is purely
// syntactic: anything containing "@" is an email, everything else a
// national ID. Deliverability and checksum validity are not checked
// here; malformed input simply fails to match in the directories.
func Classify(raw string) (domain.IdentifierKind, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.ErrEmptyIdentifier
	}
	if strings.Contains(trimmed, "@") {
		return domain.IdentifierEmail, nil
	}
	return domain.IdentifierNationalID, nil
}

// Normalize prepares an identifier for directory lookup: trimmed, and
// lowercased when email-shaped. National IDs keep their punctuation as
// entered; the customer store matches both formatted and bare forms.
func Normalize(raw string, kind domain.IdentifierKind) string {
	trimmed := strings.TrimSpace(raw)
	if kind == domain.IdentifierEmail {
		return strings.ToLower(trimmed)
	}
	return trimmed
}

// Digits strips everything but decimal digits from a national ID, so
// "011.222.333-44" and "01122233344" key the same record.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mask renders an identifier for a candidate summary without revealing
// it. Emails keep the first rune of the local part and of the domain
// ("m****@c*****.com"); national IDs keep only the last group of
// digits ("•••.•••.•••-44").
func Mask(raw string, kind domain.IdentifierKind) string {
	if kind == domain.IdentifierEmail {
		return maskEmail(raw)
	}
	return maskNationalID(raw)
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "****"
	}
	local, dom := email[:at], email[at+1:]

	masked := firstRunePlusStars(local)

	// Keep the TLD readable, mask the rest of the domain.
	if dot := strings.LastIndex(dom, "."); dot > 0 {
		masked += "@" + firstRunePlusStars(dom[:dot]) + dom[dot:]
	} else {
		masked += "@" + firstRunePlusStars(dom)
	}
	return masked
}

func maskNationalID(id string) string {
	digits := Digits(id)
	if len(digits) <= 2 {
		return "••••"
	}
	tail := digits[len(digits)-2:]
	return "•••.•••.•••-" + tail
}

func firstRunePlusStars(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return "*"
	}
	return string(runes[0]) + strings.Repeat("*", max(len(runes)-1, 1))
}
