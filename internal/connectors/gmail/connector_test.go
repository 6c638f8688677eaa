package gmail

import (
	"strings"
	"testing"
)

func TestSearchQuery(t *testing.T) {
	if got := searchQuery(""); got != "has:attachment filename:pdf" {
		t.Fatalf("got %q", got)
	}
	if got := searchQuery(" faktur pajak "); got != "has:attachment filename:pdf subject:(faktur pajak)" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeBase64URL(t *testing.T) {
	for _, in := range []string{"RmFrdHVy", "RmFrdHVyIQ", "RmFrdHVyIQ=="} {
		out, err := decodeBase64URL(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if string(out[:6]) != "Faktur" {
			t.Fatalf("%q: got %q", in, out)
		}
	}
	if _, err := decodeBase64URL("!!"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromRaw(t *testing.T) {
	raw := "Message-ID: <inv-1@sumber.co.id>\r\n" +
		"From: =?UTF-8?Q?PT_Sumber_Makmur?= <pajak@sumber.co.id>\r\n" +
		"Subject: =?UTF-8?Q?Faktur_Pajak_Maret?=\r\n" +
		"Date: Sat, 01 Mar 2025 08:00:00 +0700\r\n\r\nbody"
	got := fromRaw([]byte(raw), "18c0ffee", 0)
	if got.Provider != "gmail" || got.MessageID != "<inv-1@sumber.co.id>" || got.Subject != "Faktur Pajak Maret" {
		t.Fatalf("got=%+v", got)
	}
	if !strings.HasPrefix(got.From, "PT Sumber Makmur") || got.ReceivedAt != "2025-03-01T01:00:00Z" {
		t.Fatalf("from=%q received=%q", got.From, got.ReceivedAt)
	}

	bare := fromRaw([]byte("not a message"), "18c0ffee", 1740790800000)
	if bare.MessageID != "18c0ffee" || bare.ReceivedAt != "2025-03-01T01:00:00Z" {
		t.Fatalf("bare=%+v", bare)
	}
}
