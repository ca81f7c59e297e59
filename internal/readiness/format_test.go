package readiness_test

import (
	"testing"
	"time"

	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "Never"},
		{"seconds", now.Add(-30 * time.Second), "Just now"},
		{"one minute", now.Add(-1 * time.Minute), "1 min ago"},
		{"minutes", now.Add(-45 * time.Minute), "45 mins ago"},
		{"one hour", now.Add(-61 * time.Minute), "1 hour ago"},
		{"hours", now.Add(-5 * time.Hour), "5 hours ago"},
		{"one day", now.Add(-25 * time.Hour), "1 day ago"},
		{"days", now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{"week fallback", now.Add(-8 * 24 * time.Hour), "22 Aug 2026"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := readiness.RelativeTime(now, tc.t); got != tc.want {
				t.Fatalf("RelativeTime = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRelativeTimeIsDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	then := now.Add(-2 * time.Hour)
	first := readiness.RelativeTime(now, then)
	second := readiness.RelativeTime(now, then)
	if first != second {
		t.Fatalf("same inputs gave %q then %q", first, second)
	}
}

func TestUIKeyRoundTrip(t *testing.T) {
	for _, kind := range []readiness.EntityKind{
		readiness.KindCheck, readiness.KindDomain, readiness.KindApproval, readiness.KindEvidence,
	} {
		key := readiness.UIKey(kind, 42)
		gotKind, gotID, err := readiness.ParseUIKey(key)
		if err != nil {
			t.Fatalf("parse %q: %v", key, err)
		}
		if gotKind != kind || gotID != 42 {
			t.Fatalf("round trip %q gave kind=%c id=%d", key, gotKind, gotID)
		}
	}
	if readiness.UIKey(readiness.KindCheck, 7) != "c7" {
		t.Fatalf("unexpected key encoding")
	}
}

func TestParseUIKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "c", "x12", "c0", "c-3", "c+3", "c12x", "12", "cc12", "c 2"} {
		if _, _, err := readiness.ParseUIKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestValidateEvidence(t *testing.T) {
	if err := readiness.ValidateEvidence("Pen test report", "https://example.com/report.pdf", "document"); err != nil {
		t.Fatalf("valid evidence rejected: %v", err)
	}
	cases := []struct {
		name, title, url, evType string
	}{
		{"blank title", " ", "https://example.com", "link"},
		{"relative url", "report", "/just/a/path", "link"},
		{"no scheme", "report", "example.com/x", "link"},
		{"garbage url", "report", "::::", "link"},
		{"unknown type", "report", "https://example.com", "tarball"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := readiness.ValidateEvidence(tc.title, tc.url, tc.evType); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestHasRequiredEvidence(t *testing.T) {
	if !readiness.HasRequiredEvidence(1, 0) {
		t.Fatalf("minimum defaults to 1")
	}
	if readiness.HasRequiredEvidence(0, 1) {
		t.Fatalf("no evidence should not satisfy")
	}
	if !readiness.HasRequiredEvidence(3, 2) {
		t.Fatalf("3 >= 2 should satisfy")
	}
}
