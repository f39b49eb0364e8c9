package utils

import (
	"strings"
)

// WhatsAppServer is the chat domain appended to a phone number to address a user.
const WhatsAppServer = "s.whatsapp.net"

// DefaultCountryCode is prefixed to numbers that do not already carry it.
const DefaultCountryCode = "34"

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone returns the digits of tel prefixed with the country code
// when it is missing. "+34 666 111 222" and "666111222" both yield "34666111222".
func NormalizePhone(tel, countryCode string) string {
	digits := DigitsOnly(tel)
	if countryCode == "" || strings.HasPrefix(digits, countryCode) {
		return digits
	}
	return countryCode + digits
}

// ChatAddress derives the WhatsApp chat address for a phone number.
func ChatAddress(tel, countryCode string) string {
	return NormalizePhone(tel, countryCode) + "@" + WhatsAppServer
}

// WALinkWithText builds a wa.me click-to-chat link with a prefilled message.
func WALinkWithText(tel, countryCode, message string) string {
	return "https://wa.me/" + NormalizePhone(tel, countryCode) + "?text=" + EncodeURIComponent(message)
}

// EncodeURIComponent percent-encodes s the way browsers do for
// encodeURIComponent: everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
