package testsupport

import (
	"context"
	"testing"

	"recap/internal/config"
	"recap/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewVideo creates a pending item for tests using the provided store.
func NewVideo(t testing.TB, st *store.Store, videoID, title string) *store.Item {
	t.Helper()

	item, _, err := st.AddVideo(context.Background(), store.NewVideo{
		VideoID:    videoID,
		Title:      title,
		SourceKind: store.SourceManual,
	})
	if err != nil {
		t.Fatalf("store.AddVideo: %v", err)
	}
	return item
}
