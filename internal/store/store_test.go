package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"recap/internal/store"
	"recap/internal/testsupport"
)

func TestOpenCreatesSchemaAndAddVideoDeduplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, created, err := st.AddVideo(ctx, store.NewVideo{
		VideoID:    "dQw4w9WgXcQ",
		Title:      "Sample Video",
		SourceKind: store.SourceManual,
	})
	if err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to report created")
	}
	if item.Status != store.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}

	again, created, err := st.AddVideo(ctx, store.NewVideo{
		VideoID:    "dQw4w9WgXcQ",
		Title:      "Different Title",
		SourceKind: store.SourceDiscovery,
	})
	if err != nil {
		t.Fatalf("AddVideo on duplicate failed: %v", err)
	}
	if created {
		t.Fatal("expected duplicate insert to report not created")
	}
	if again.Title != "Sample Video" {
		t.Fatalf("duplicate insert must not overwrite, got title %q", again.Title)
	}
	if again.SourceKind != store.SourceManual {
		t.Fatalf("duplicate insert must keep source kind, got %s", again.SourceKind)
	}
}

func TestAddVideoRequiresVideoID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, _, err := st.AddVideo(context.Background(), store.NewVideo{Title: "No ID"}); err == nil {
		t.Fatal("expected error when video id missing")
	}
}

func TestTransitionRejectsUndefinedPairs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewVideo(t, st, "vid-illegal", "Illegal")

	if err := st.Transition(ctx, item, store.StatusSuccess); !errors.Is(err, store.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if item.Status != store.StatusPending {
		t.Fatalf("failed transition must not mutate item, got %s", item.Status)
	}
}

func TestTransitionDetectsConcurrentWriter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewVideo(t, st, "vid-race", "Race")

	second, err := st.GetByVideoID(ctx, "vid-race")
	if err != nil {
		t.Fatalf("GetByVideoID failed: %v", err)
	}

	if err := st.Transition(ctx, first, store.StatusFetchingMetadata); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	if err := st.Transition(ctx, second, store.StatusFetchingMetadata); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDueReturnsPendingAndAutoRetryFailuresInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	older := testsupport.NewVideo(t, st, "vid-older", "Older")
	time.Sleep(5 * time.Millisecond)
	testsupport.NewVideo(t, st, "vid-newer", "Newer")
	time.Sleep(5 * time.Millisecond)
	done := testsupport.NewVideo(t, st, "vid-done", "Done")

	walkTo(t, st, older, store.StatusFailedTranscript)
	walkTo(t, st, done, store.StatusSuccess)

	due, err := st.Due(ctx)
	if err != nil {
		t.Fatalf("Due failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due items, got %d", len(due))
	}
	if due[0].VideoID != "vid-older" || due[1].VideoID != "vid-newer" {
		t.Fatalf("unexpected due order: %s, %s", due[0].VideoID, due[1].VideoID)
	}
}

func TestRetryFromFailureIncrementsBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewVideo(t, st, "vid-retry", "Retry")
	walkTo(t, st, item, store.StatusFailedTranscript)
	item.ErrorMessage = "no transcript available"
	if err := st.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retried, err := st.Retry(ctx, "vid-retry", false)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried.Status != store.StatusPending {
		t.Fatalf("expected pending after retry, got %s", retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", retried.RetryCount)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", retried.ErrorMessage)
	}
}

func TestRetryPermanentRequiresForce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewVideo(t, st, "vid-perm", "Permanent")
	walkTo(t, st, item, store.StatusFetchingTranscript)
	item.RetryCount = 3
	if err := st.Transition(ctx, item, store.StatusFailedPermanent); err != nil {
		t.Fatalf("transition to permanent failed: %v", err)
	}

	if _, err := st.Retry(ctx, "vid-perm", false); !errors.Is(err, store.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable, got %v", err)
	}

	forced, err := st.Retry(ctx, "vid-perm", true)
	if err != nil {
		t.Fatalf("forced Retry failed: %v", err)
	}
	if forced.Status != store.StatusPending {
		t.Fatalf("expected pending after forced retry, got %s", forced.Status)
	}
	if forced.RetryCount != 1 {
		t.Fatalf("forced retry must reset budget to 1, got %d", forced.RetryCount)
	}
}

func TestRetryRejectsSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewVideo(t, st, "vid-success", "Success")
	walkTo(t, st, item, store.StatusSuccess)

	if _, err := st.Retry(context.Background(), "vid-success", false); !errors.Is(err, store.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable, got %v", err)
	}
	if _, err := st.Retry(context.Background(), "vid-success", true); !errors.Is(err, store.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable even when forced, got %v", err)
	}
}

func TestRequestStopFailsPendingImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.NewVideo(t, st, "vid-stop", "Stop")

	item, stopped, err := st.RequestStop(context.Background(), "vid-stop")
	if err != nil {
		t.Fatalf("RequestStop failed: %v", err)
	}
	if !stopped {
		t.Fatal("expected pending item to be stopped")
	}
	if item.Status != store.StatusFailedStopped {
		t.Fatalf("expected failed_stopped, got %s", item.Status)
	}
	if item.ErrorMessage != store.UserStopReason {
		t.Fatalf("unexpected stop reason %q", item.ErrorMessage)
	}
}

func TestRequestStopFlagsInFlightItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewVideo(t, st, "vid-flag", "Flag")
	walkTo(t, st, item, store.StatusGeneratingSummary)

	_, stopped, err := st.RequestStop(ctx, "vid-flag")
	if err != nil {
		t.Fatalf("RequestStop failed: %v", err)
	}
	if !stopped {
		t.Fatal("expected in-flight item to accept stop request")
	}

	fetched, err := st.GetByVideoID(ctx, "vid-flag")
	if err != nil {
		t.Fatalf("GetByVideoID failed: %v", err)
	}
	if fetched.Status != store.StatusGeneratingSummary {
		t.Fatalf("in-flight stop must not change status, got %s", fetched.Status)
	}
	if !fetched.StopRequested {
		t.Fatal("expected stop_requested to be set")
	}
}

func TestRequestStopLeavesTerminalItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewVideo(t, st, "vid-term", "Terminal")
	walkTo(t, st, item, store.StatusSuccess)

	fetched, stopped, err := st.RequestStop(context.Background(), "vid-term")
	if err != nil {
		t.Fatalf("RequestStop failed: %v", err)
	}
	if stopped {
		t.Fatal("terminal item must not be stopped")
	}
	if fetched.Status != store.StatusSuccess {
		t.Fatalf("expected success untouched, got %s", fetched.Status)
	}
}

func TestReclaimStaleCountsAsFailedAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewVideo(t, st, "vid-stale", "Stale")
	walkTo(t, st, stale, store.StatusFetchingTranscript)

	exhausted := testsupport.NewVideo(t, st, "vid-exhausted", "Exhausted")
	walkTo(t, st, exhausted, store.StatusFetchingTranscript)
	exhausted.RetryCount = 2
	if err := st.Update(ctx, exhausted); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewVideo(t, st, "vid-fresh", "Fresh")
	walkTo(t, st, fresh, store.StatusFetchingTranscript)
	if err := st.UpdateHeartbeat(ctx, "vid-fresh"); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}

	reclaimed, err := st.ReclaimStale(ctx, time.Now().Add(-time.Second), 3)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if len(reclaimed) != 2 {
		t.Fatalf("expected 2 reclaimed items, got %d", len(reclaimed))
	}

	got, err := st.GetByVideoID(ctx, "vid-stale")
	if err != nil {
		t.Fatalf("GetByVideoID failed: %v", err)
	}
	if got.Status != store.StatusPending || got.RetryCount != 1 {
		t.Fatalf("expected pending with retry 1, got %s retry %d", got.Status, got.RetryCount)
	}
	if got.ErrorMessage != store.StuckReclaimReason {
		t.Fatalf("unexpected reclaim reason %q", got.ErrorMessage)
	}

	got, err = st.GetByVideoID(ctx, "vid-exhausted")
	if err != nil {
		t.Fatalf("GetByVideoID failed: %v", err)
	}
	if got.Status != store.StatusFailedPermanent {
		t.Fatalf("expected failed_permanent after budget exhausted, got %s", got.Status)
	}
	if got.ErrorMessage != store.MaxRetriesReason {
		t.Fatalf("unexpected permanent reason %q", got.ErrorMessage)
	}

	got, err = st.GetByVideoID(ctx, "vid-fresh")
	if err != nil {
		t.Fatalf("GetByVideoID failed: %v", err)
	}
	if got.Status != store.StatusFetchingTranscript {
		t.Fatalf("fresh heartbeat must not be reclaimed, got %s", got.Status)
	}
}

func TestListFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, _, err := st.AddVideo(ctx, store.NewVideo{
		VideoID:    "vid-a",
		ChannelID:  "UC111",
		SourceKind: store.SourceDiscovery,
	}); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}
	if _, _, err := st.AddVideo(ctx, store.NewVideo{
		VideoID:    "vid-b",
		ChannelID:  "UC222",
		SourceKind: store.SourceManual,
	}); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	byChannel, err := st.List(ctx, store.ListFilter{ChannelID: "UC111"})
	if err != nil {
		t.Fatalf("List by channel failed: %v", err)
	}
	if len(byChannel) != 1 || byChannel[0].VideoID != "vid-a" {
		t.Fatalf("unexpected channel filter result: %#v", byChannel)
	}

	bySource, err := st.List(ctx, store.ListFilter{SourceKind: store.SourceManual})
	if err != nil {
		t.Fatalf("List by source failed: %v", err)
	}
	if len(bySource) != 1 || bySource[0].VideoID != "vid-b" {
		t.Fatalf("unexpected source filter result: %#v", bySource)
	}

	limited, err := st.List(ctx, store.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 item with limit, got %d", len(limited))
	}
}

func TestTranscriptFailureCacheCooldown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := st.CacheTranscriptFailure(ctx, "vid-cache", "captions", "no captions listed"); err != nil {
		t.Fatalf("CacheTranscriptFailure failed: %v", err)
	}
	if err := st.CacheTranscriptFailure(ctx, "vid-cache", "timedtext", "empty response"); err != nil {
		t.Fatalf("CacheTranscriptFailure failed: %v", err)
	}

	fresh, err := st.FreshTranscriptFailures(ctx, "vid-cache", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FreshTranscriptFailures failed: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected 2 fresh failures, got %d", len(fresh))
	}
	if fresh["captions"].Reason != "no captions listed" {
		t.Fatalf("unexpected reason %q", fresh["captions"].Reason)
	}

	expired, err := st.FreshTranscriptFailures(ctx, "vid-cache", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FreshTranscriptFailures failed: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no failures past cutoff, got %d", len(expired))
	}

	if err := st.ClearTranscriptFailures(ctx, "vid-cache"); err != nil {
		t.Fatalf("ClearTranscriptFailures failed: %v", err)
	}
	cleared, err := st.FreshTranscriptFailures(ctx, "vid-cache", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FreshTranscriptFailures failed: %v", err)
	}
	if len(cleared) != 0 {
		t.Fatalf("expected cache cleared, got %d entries", len(cleared))
	}
}

func TestTranscriptFailureCacheAllowsEmptyReason(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	// An empty reason is stored as NULL; reading it back must not error.
	if err := st.CacheTranscriptFailure(ctx, "vid-noreason", "ytdlp", ""); err != nil {
		t.Fatalf("CacheTranscriptFailure failed: %v", err)
	}

	fresh, err := st.FreshTranscriptFailures(ctx, "vid-noreason", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FreshTranscriptFailures failed: %v", err)
	}
	failure, ok := fresh["ytdlp"]
	if !ok {
		t.Fatalf("expected cached failure, got %#v", fresh)
	}
	if failure.Reason != "" {
		t.Fatalf("expected empty reason, got %q", failure.Reason)
	}
}

func TestChannelLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	channel, _, err := st.AddChannel(ctx, "UCabc", "Example Channel")
	if err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	if !channel.Enabled {
		t.Fatal("expected new channel enabled")
	}
	watermark := channel.AddedAt

	time.Sleep(5 * time.Millisecond)
	renamed, _, err := st.AddChannel(ctx, "UCabc", "Renamed Channel")
	if err != nil {
		t.Fatalf("AddChannel on existing failed: %v", err)
	}
	if renamed.Name != "Renamed Channel" {
		t.Fatalf("expected name update, got %q", renamed.Name)
	}
	if !renamed.AddedAt.Equal(watermark) {
		t.Fatal("re-adding a channel must keep the watermark")
	}

	if _, err := st.SetChannelEnabled(ctx, "UCabc", false); err != nil {
		t.Fatalf("SetChannelEnabled failed: %v", err)
	}
	enabled, err := st.EnabledChannels(ctx)
	if err != nil {
		t.Fatalf("EnabledChannels failed: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("expected no enabled channels, got %d", len(enabled))
	}

	removed, err := st.RemoveChannel(ctx, "UCabc")
	if err != nil {
		t.Fatalf("RemoveChannel failed: %v", err)
	}
	if !removed {
		t.Fatal("expected channel removal to report true")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	got, err := st.GetSetting(ctx, store.SettingCheckInterval, "60")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if got != "60" {
		t.Fatalf("expected fallback 60, got %q", got)
	}

	if err := st.SetSetting(ctx, store.SettingCheckInterval, "15"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	got, err = st.GetSetting(ctx, store.SettingCheckInterval, "60")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if got != "15" {
		t.Fatalf("expected 15, got %q", got)
	}

	all, err := st.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	if all[store.SettingCheckInterval] != "15" {
		t.Fatalf("unexpected settings map: %#v", all)
	}

	deleted, err := st.DeleteSetting(ctx, store.SettingCheckInterval)
	if err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report true")
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewVideo(t, st, "vid-1", "One")
	testsupport.NewVideo(t, st, "vid-2", "Two")
	done := testsupport.NewVideo(t, st, "vid-3", "Three")
	walkTo(t, st, done, store.StatusSuccess)

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[store.StatusPending] != 2 {
		t.Fatalf("expected 2 pending, got %d", stats[store.StatusPending])
	}
	if stats[store.StatusSuccess] != 1 {
		t.Fatalf("expected 1 success, got %d", stats[store.StatusSuccess])
	}
}

// walkTo drives an item along the happy path until it reaches the target
// status, taking the failure exit from the nearest in-flight state when the
// target is a failure.
func walkTo(t *testing.T, st *store.Store, item *store.Item, target store.Status) {
	t.Helper()

	path := map[store.Status]store.Status{
		store.StatusPending:            store.StatusFetchingMetadata,
		store.StatusFetchingMetadata:   store.StatusFetchingTranscript,
		store.StatusFetchingTranscript: store.StatusGeneratingSummary,
		store.StatusGeneratingSummary:  store.StatusSendingEmail,
		store.StatusSendingEmail:       store.StatusSuccess,
	}
	ctx := context.Background()
	for item.Status != target {
		next, ok := path[item.Status]
		if !ok {
			t.Fatalf("no path from %s to %s", item.Status, target)
		}
		if store.CanTransition(item.Status, target) {
			next = target
		}
		if err := st.Transition(ctx, item, next); err != nil {
			t.Fatalf("transition %s failed: %v", next, err)
		}
	}
}
