package index

import (
	"testing"
	"time"

	"github.com/indieinfra/pantry/asset"
)

func strPtr(s string) *string { return &s }

var baseTime = time.Date(2026, 2, 1, 18, 30, 0, 0, time.UTC)

func localAsset(key string, age time.Duration, tags ...string) *asset.MediaAsset {
	thumb := "https://example.com/uploads/" + key
	if tags == nil {
		tags = []string{}
	}
	return &asset.MediaAsset{
		ID:         "local-" + key,
		Name:       key,
		URL:        "https://example.com/uploads/" + key,
		Thumbnail:  &thumb,
		Type:       asset.KindImage,
		Source:     asset.SourceLocal,
		Size:       1024,
		Dimensions: &asset.Dimensions{Width: 640, Height: 480},
		CreatedAt:  baseTime.Add(-age),
		Tags:       tags,
	}
}

func remoteVideo(key string, age time.Duration) *asset.MediaAsset {
	return &asset.MediaAsset{
		ID:        "remote-" + key,
		Name:      key,
		URL:       "https://cdn.example.com/" + key,
		Type:      asset.KindVideo,
		Source:    asset.SourceRemote,
		Size:      4096,
		CreatedAt: baseTime.Add(-age),
		Tags:      []string{},
		RemoteKey: strPtr(key),
	}
}

func requireIDs(t *testing.T, got []*asset.MediaAsset, want ...string) {
	t.Helper()

	if got == nil {
		t.Fatalf("expected non-nil list")
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("record %d: expected %q, got %q", i, want[i], got[i].ID)
		}
	}
}
