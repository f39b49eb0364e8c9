package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+34 666 111 222", "34666111222"},
		{"666111222", "34666111222"},
		{"612-345-678", "34612345678"},
		{"34612345678", "34612345678"},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.raw, DefaultCountryCode); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestChatAddress(t *testing.T) {
	if got := ChatAddress("612345678", "34"); got != "34612345678@s.whatsapp.net" {
		t.Errorf("ChatAddress = %q", got)
	}
}

func TestWALinkWithText(t *testing.T) {
	tests := []struct {
		tel, msg string
		want     string
	}{
		{"+34 666 111 222", "Hola mundo!", "https://wa.me/34666111222?text=Hola%20mundo!"},
		{"666111222", "Hi", "https://wa.me/34666111222?text=Hi"},
		{"666111222", "¿Está?", "https://wa.me/34666111222?text=%C2%BFEst%C3%A1%3F"},
	}

	for _, tt := range tests {
		if got := WALinkWithText(tt.tel, DefaultCountryCode, tt.msg); got != tt.want {
			t.Errorf("WALinkWithText(%q, %q) = %q; want %q", tt.tel, tt.msg, got, tt.want)
		}
	}
}

func TestEncodeURIComponentKeepsMarks(t *testing.T) {
	in := "a-b_c.d!e~f*g'h(i)j *k*"
	want := "a-b_c.d!e~f*g'h(i)j%20*k*"
	if got := EncodeURIComponent(in); got != want {
		t.Errorf("EncodeURIComponent(%q) = %q; want %q", in, got, want)
	}
}
