package googleplay

import (
	"strings"
	"testing"
)

func TestParseStarLabel(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Rated 4 stars out of five stars", 4},
		{"rated 1 star out of five stars", 1},
		{"", 0},
		{"five stars", 0},
	}
	for _, tt := range tests {
		if got := parseStarLabel(tt.in); got != tt.want {
			t.Errorf("parseStarLabel(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseHelpful(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1,204 people found this review helpful", 1204},
		{"1 person found this review helpful", 1},
		{"", 0},
		{"Did you find this helpful?", 0},
	}
	for _, tt := range tests {
		if got := parseHelpful(tt.in); got != tt.want {
			t.Errorf("parseHelpful(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1.2M reviews", 1200000, true},
		{"35K reviews", 35000, true},
		{"1,234 reviews", 1234, true},
		{"no reviews yet", 0, false},
	}
	for _, tt := range tests {
		got := parseCount(tt.in)
		if (got != nil) != tt.ok || (got != nil && *got != tt.want) {
			t.Errorf("parseCount(%q) = %v; want %d (ok=%v)", tt.in, got, tt.want, tt.ok)
		}
	}
}

func TestParseScore(t *testing.T) {
	if f, ok := parseScore("4.6star"); !ok || f != 4.6 {
		t.Errorf("parseScore(4.6star) = %v, %v", f, ok)
	}
	if f, ok := parseScore("4,3"); !ok || f != 4.3 {
		t.Errorf("parseScore(4,3) = %v, %v", f, ok)
	}
	if _, ok := parseScore("12"); ok {
		t.Error("parseScore(12) should be rejected")
	}
}

func TestURLs(t *testing.T) {
	got := detailsURL("com.example.notes", "en", "us")
	if got != "https://play.google.com/store/apps/details?gl=us&hl=en&id=com.example.notes" {
		t.Errorf("detailsURL = %s", got)
	}
	if id := appIDFromHref(got); id != "com.example.notes" {
		t.Errorf("appIDFromHref(detailsURL) = %q", id)
	}
	if id := appIDFromHref("https://play.google.com/store/apps/dev?id=123"); id != "" {
		t.Errorf("developer link yielded id %q", id)
	}
	if s := searchURL("AI note taking", "en", "us"); !strings.Contains(s, "q=AI+note+taking") || !strings.Contains(s, "c=apps") {
		t.Errorf("searchURL = %s", s)
	}
}

func TestToRawReviewFallbackID(t *testing.T) {
	d := reviewData{User: "ann", Stars: "Rated 5 stars out of five stars", Date: "January 2, 2024", Content: "ok"}
	a := toRawReview("com.a", d)
	b := toRawReview("com.a", d)
	if a.ReviewID == "" || a.ReviewID != b.ReviewID {
		t.Errorf("fallback ids %q and %q should be equal and non-empty", a.ReviewID, b.ReviewID)
	}
	if c := toRawReview("com.b", d); c.ReviewID == a.ReviewID {
		t.Error("fallback id should depend on app id")
	}
	if a.Score != 5 || a.At != "January 2, 2024" {
		t.Errorf("review = %+v", a)
	}

	d.ID = "gp:AOqpTOE"
	if r := toRawReview("com.a", d); r.ReviewID != "gp:AOqpTOE" {
		t.Errorf("markup id not used: %s", r.ReviewID)
	}
}

func TestToRawApp(t *testing.T) {
	app := toRawApp("com.a", "u", listingData{Title: "A", Score: "4.4star", Ratings: "2.1K reviews", Installs: "100K+", Price: "Free"})
	if app.Score == nil || *app.Score != 4.4 {
		t.Errorf("score = %v", app.Score)
	}
	if app.Ratings == nil || *app.Ratings != 2100 {
		t.Errorf("ratings = %v", app.Ratings)
	}
	if app.Installs != "100K+" {
		t.Errorf("installs = %q; raw text expected", app.Installs)
	}
}
