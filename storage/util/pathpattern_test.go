package util

import (
	"testing"
	"time"
)

func TestPathPattern_Generate(t *testing.T) {
	testTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		pattern   string
		slug      string
		timestamp time.Time
		ext       string
		expected  string
		wantErr   bool
	}{
		{
			name:     "slug and extension",
			pattern:  "{slug}{ext}",
			slug:     "tacos",
			ext:      ".jpg",
			expected: "tacos.jpg",
		},
		{
			name:      "dated folders",
			pattern:   "{year}/{month}/{filename}",
			slug:      "brunch-menu",
			timestamp: testTime,
			ext:       ".png",
			expected:  "2026/01/brunch-menu.png",
		},
		{
			name:      "day folders",
			pattern:   "media/{year}/{month}/{day}/{filename}",
			slug:      "chef-video",
			timestamp: testTime,
			ext:       ".mp4",
			expected:  "media/2026/01/15/chef-video.mp4",
		},
		{
			name:     "extension without leading dot",
			pattern:  "{slug}{ext}",
			slug:     "burger",
			ext:      "webp",
			expected: "burger.webp",
		},
		{
			name:     "date placeholders kept without timestamp",
			pattern:  "{year}/{filename}",
			slug:     "soup",
			ext:      ".gif",
			expected: "{year}/soup.gif",
		},
		{
			name:    "empty slug",
			pattern: "{filename}",
			wantErr: true,
		},
		{
			name:      "double slash collapsed",
			pattern:   "{year}//{filename}",
			slug:      "salad",
			timestamp: testTime,
			ext:       ".jpg",
			expected:  "2026/salad.jpg",
		},
		{
			name:    "pattern without placeholders that cleans to nothing",
			pattern: "/",
			slug:    "x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := NewPathPattern(tt.pattern)
			result, err := pattern.Generate(tt.slug, tt.timestamp, tt.ext)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestDefaultRemotePattern(t *testing.T) {
	pattern := DefaultRemotePattern()
	testTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	result, err := pattern.Generate("photo-1a2b", testTime, ".jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "photo-1a2b.jpg"
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestPathPattern_EmptyExtension(t *testing.T) {
	pattern := NewPathPattern("{slug}{ext}")
	result, err := pattern.Generate("test", time.Time{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "test"
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestPathPattern_MonthPadding(t *testing.T) {
	pattern := NewPathPattern("{year}/{month}/{day}/{slug}.jpg")
	testTime := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	result, err := pattern.Generate("dish", testTime, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "2026/03/05/dish.jpg"
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestPathPattern_LeadingSlashTrimmed(t *testing.T) {
	pattern := NewPathPattern("/media/{filename}")
	result, err := pattern.Generate("dish", time.Time{}, ".png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != "media/dish.png" {
		t.Fatalf("expected leading slash to be trimmed, got %q", result)
	}
}
