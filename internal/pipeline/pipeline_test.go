package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"recap/internal/config"
	"recap/internal/email"
	"recap/internal/pipeline"
	"recap/internal/runlock"
	"recap/internal/store"
	"recap/internal/summarizer"
	"recap/internal/testsupport"
	"recap/internal/transcript"
	"recap/internal/youtube"
)

type fakeFeeds struct {
	videos map[string][]youtube.FeedVideo
	err    error
}

func (f *fakeFeeds) Fetch(ctx context.Context, channelID string) ([]youtube.FeedVideo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.videos[channelID], nil
}

type fakeMetadata struct {
	meta map[string]*youtube.Metadata
	err  error
}

func (f *fakeMetadata) Fetch(ctx context.Context, videoID string) (*youtube.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	if meta, ok := f.meta[videoID]; ok {
		return meta, nil
	}
	return &youtube.Metadata{VideoID: videoID, DurationSeconds: 600}, nil
}

type fakeTranscripts struct {
	err   error
	calls int
}

func (f *fakeTranscripts) Resolve(ctx context.Context, videoID string) (*transcript.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &transcript.Result{Text: "transcript for " + videoID, Source: "captions"}, nil
}

type fakeSummarizer struct {
	err     error
	hook    func(title string)
	calls   int
	lastReq summarizer.Request
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req summarizer.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.hook != nil {
		f.hook(req.Title)
	}
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + req.Title, nil
}

type fakeSender struct {
	err   error
	sent  []email.Summary
	calls int
}

func (f *fakeSender) Send(ctx context.Context, summary email.Summary) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, summary)
	return nil
}

type harness struct {
	cfg         *config.Config
	store       *store.Store
	runner      *pipeline.Runner
	feeds       *fakeFeeds
	metadata    *fakeMetadata
	transcripts *fakeTranscripts
	summarizer  *fakeSummarizer
	sender      *fakeSender
}

func newHarness(t *testing.T, opts ...func(*pipeline.Deps)) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	h := &harness{
		cfg:         cfg,
		store:       st,
		feeds:       &fakeFeeds{videos: map[string][]youtube.FeedVideo{}},
		metadata:    &fakeMetadata{meta: map[string]*youtube.Metadata{}},
		transcripts: &fakeTranscripts{},
		summarizer:  &fakeSummarizer{},
		sender:      &fakeSender{},
	}
	deps := pipeline.Deps{
		Store:       st,
		Lock:        runlock.New(cfg.LockPath()),
		Feeds:       h.feeds,
		Metadata:    h.metadata,
		Transcripts: h.transcripts,
		Summarizer:  h.summarizer,
		Email:       h.sender,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	runner, err := pipeline.New(cfg, deps)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.runner = runner
	return h
}

func (h *harness) mustGet(t *testing.T, videoID string) *store.Item {
	t.Helper()
	item, err := h.store.GetByVideoID(context.Background(), videoID)
	if err != nil {
		t.Fatalf("GetByVideoID: %v", err)
	}
	if item == nil {
		t.Fatalf("item %s not found", videoID)
	}
	return item
}

func TestRunOnceHappyPath(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-happy", "Happy Video")

	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Processed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	item := h.mustGet(t, "vid-happy")
	if item.Status != store.StatusSuccess {
		t.Fatalf("expected success, got %s", item.Status)
	}
	if item.Transcript == "" || item.TranscriptSource != "captions" {
		t.Fatalf("expected transcript recorded: %#v", item)
	}
	if item.Summary == "" {
		t.Fatal("expected summary recorded")
	}
	if !item.EmailSent {
		t.Fatal("expected email sent flag")
	}
	if len(h.sender.sent) != 1 || h.sender.sent[0].VideoID != "vid-happy" {
		t.Fatalf("unexpected deliveries: %#v", h.sender.sent)
	}
}

func TestRunOnceTranscriptFailureParksItemForNextRun(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-ts", "Transcript Fails")
	h.transcripts.err = errors.New("all strategies failed")

	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", stats)
	}

	item := h.mustGet(t, "vid-ts")
	if item.Status != store.StatusFailedTranscript {
		t.Fatalf("expected failed_transcript, got %s", item.Status)
	}
	if item.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", item.RetryCount)
	}
	if item.ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}

	// The failure is swept up automatically by the next run.
	h.transcripts.err = nil
	stats, err = h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("expected recovery on second run, got %+v", stats)
	}
	item = h.mustGet(t, "vid-ts")
	if item.Status != store.StatusSuccess {
		t.Fatalf("expected success after retry, got %s", item.Status)
	}
	if item.ErrorMessage != "" {
		t.Fatalf("expected error cleared on success, got %q", item.ErrorMessage)
	}
}

func TestRunOnceExhaustedRetriesGoPermanent(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewVideo(t, h.store, "vid-exhaust", "Exhausted")
	h.transcripts.err = errors.New("still broken")

	// Two prior attempts already consumed; the third failure is final.
	item.RetryCount = 2
	if err := h.store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := h.runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	got := h.mustGet(t, "vid-exhaust")
	if got.Status != store.StatusFailedPermanent {
		t.Fatalf("expected failed_permanent, got %s", got.Status)
	}
	if got.RetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", got.RetryCount)
	}

	// Permanent failures are not swept by later runs.
	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if stats.Processed != 0 {
		t.Fatalf("permanent item must not be reprocessed: %+v", stats)
	}
}

func TestRunOnceRetryCountNeverExceedsBudget(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewVideo(t, h.store, "vid-cap", "At The Cap")
	h.transcripts.err = errors.New("still broken")

	// A manual retry of the final retryable failure re-queues the item
	// with the whole budget already spent.
	item.RetryCount = 3
	if err := h.store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := h.runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	got := h.mustGet(t, "vid-cap")
	if got.Status != store.StatusFailedPermanent {
		t.Fatalf("expected failed_permanent, got %s", got.Status)
	}
	if got.RetryCount != 3 {
		t.Fatalf("retry count must not pass the budget, got %d", got.RetryCount)
	}
}

func TestRunOnceSummaryFailureKeepsTranscript(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-ai", "AI Fails")
	h.summarizer.err = errors.New("model unavailable")

	if _, err := h.runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	item := h.mustGet(t, "vid-ai")
	if item.Status != store.StatusFailedAI {
		t.Fatalf("expected failed_ai, got %s", item.Status)
	}
	if item.Transcript == "" {
		t.Fatal("transcript must survive a summary failure")
	}
	if h.sender.calls != 0 {
		t.Fatal("email must not be attempted after a summary failure")
	}
}

func TestRunOnceEmailFailureKeepsSummary(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-mail", "Mail Fails")
	h.sender.err = errors.New("smtp refused")

	if _, err := h.runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	item := h.mustGet(t, "vid-mail")
	if item.Status != store.StatusFailedEmail {
		t.Fatalf("expected failed_email, got %s", item.Status)
	}
	if item.Summary == "" {
		t.Fatal("summary must survive a delivery failure")
	}
	if item.EmailSent {
		t.Fatal("email_sent must stay false")
	}
}

func TestRunOnceReusesArtifactsWhenRetryingDelivery(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-redeliver", "Redeliver")
	h.sender.err = errors.New("smtp refused")

	if _, err := h.runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if h.transcripts.calls != 1 || h.summarizer.calls != 1 {
		t.Fatalf("unexpected call counts: transcripts=%d summarizer=%d",
			h.transcripts.calls, h.summarizer.calls)
	}

	// The next sweep only repeats delivery; transcript and summary are
	// taken from the item.
	h.sender.err = nil
	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if h.transcripts.calls != 1 || h.summarizer.calls != 1 {
		t.Fatalf("artifacts must be reused: transcripts=%d summarizer=%d",
			h.transcripts.calls, h.summarizer.calls)
	}
	if h.sender.calls != 2 {
		t.Fatalf("expected a second delivery attempt, got %d", h.sender.calls)
	}

	item := h.mustGet(t, "vid-redeliver")
	if item.Status != store.StatusSuccess || !item.EmailSent {
		t.Fatalf("unexpected item after redelivery: status=%s email_sent=%v",
			item.Status, item.EmailSent)
	}
}

func TestRunOnceSendEmailSettingDisablesDelivery(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-quiet", "Quiet")
	if err := h.store.SetSetting(context.Background(), store.SettingSendEmail, "false"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if h.sender.calls != 0 {
		t.Fatal("delivery must be skipped when send_email is off")
	}

	item := h.mustGet(t, "vid-quiet")
	if item.Status != store.StatusSuccess || item.EmailSent {
		t.Fatalf("unexpected item: status=%s email_sent=%v", item.Status, item.EmailSent)
	}
}

func TestRunOnceAppliesPromptSettings(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-prompt", "Prompted")
	ctx := context.Background()
	if err := h.store.SetSetting(ctx, store.SettingPromptTemplate, "Summarize tersely."); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := h.store.SetSetting(ctx, store.SettingSummaryWords, "150"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	if _, err := h.runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if h.summarizer.lastReq.Prompt != "Summarize tersely." {
		t.Fatalf("unexpected prompt %q", h.summarizer.lastReq.Prompt)
	}
	if h.summarizer.lastReq.MaxWords != 150 {
		t.Fatalf("unexpected word budget %d", h.summarizer.lastReq.MaxWords)
	}
}

func TestRunOnceSummaryOnlyModeFinishesWithoutDelivery(t *testing.T) {
	h := newHarness(t, func(deps *pipeline.Deps) {
		deps.Email = nil
	})
	testsupport.NewVideo(t, h.store, "vid-noemail", "No Email")

	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	item := h.mustGet(t, "vid-noemail")
	if item.Status != store.StatusSuccess {
		t.Fatalf("expected success, got %s", item.Status)
	}
	if item.EmailSent {
		t.Fatal("email_sent must be false in summary-only mode")
	}
}

func TestRunOnceHonorsStopRequestAtStepBoundary(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-stopme", "Stop Me")

	// Request the stop while the item is mid-flight; the flag is observed
	// at the next step boundary, not mid-step.
	h.summarizer.hook = func(string) {
		if _, _, err := h.store.RequestStop(context.Background(), "vid-stopme"); err != nil {
			t.Errorf("RequestStop: %v", err)
		}
	}

	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Stopped != 1 {
		t.Fatalf("expected 1 stopped item, got %+v", stats)
	}

	item := h.mustGet(t, "vid-stopme")
	if item.Status != store.StatusFailedStopped {
		t.Fatalf("expected failed_stopped, got %s", item.Status)
	}
	if item.ErrorMessage != store.UserStopReason {
		t.Fatalf("unexpected stop reason %q", item.ErrorMessage)
	}
	if h.sender.calls != 0 {
		t.Fatal("stopped item must not reach delivery")
	}

	// Stopped items stay parked until a manual retry.
	stats, err = h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if stats.Processed != 0 {
		t.Fatalf("stopped item must not be auto-swept: %+v", stats)
	}
}

func TestRunOnceDiscoveryHonorsWatermarkAndDeduplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	channel, _, err := h.store.AddChannel(ctx, "UCchannel0123456789abcd", "Channel")
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	before := channel.AddedAt.Add(-time.Hour)
	after := channel.AddedAt.Add(time.Hour)
	h.feeds.videos["UCchannel0123456789abcd"] = []youtube.FeedVideo{
		{VideoID: "vid-new0001", Title: "New", ChannelID: "UCchannel0123456789abcd", Published: after},
		{VideoID: "vid-old0001", Title: "Old", ChannelID: "UCchannel0123456789abcd", Published: before},
	}

	stats, err := h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Discovered != 1 {
		t.Fatalf("expected 1 discovered video, got %+v", stats)
	}

	if item, err := h.store.GetByVideoID(ctx, "vid-old0001"); err != nil || item != nil {
		t.Fatalf("pre-watermark video must not be queued: %#v, %v", item, err)
	}
	newItem := h.mustGet(t, "vid-new0001")
	if newItem.SourceKind != store.SourceDiscovery {
		t.Fatalf("expected discovery source, got %s", newItem.SourceKind)
	}

	// A second run rediscovers nothing.
	stats, err = h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if stats.Discovered != 0 {
		t.Fatalf("expected no rediscovery, got %+v", stats)
	}
}

func TestRunOnceSkipsShortsWhenEnabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testsupport.NewVideo(t, h.store, "vid-short01", "A Short")
	h.metadata.meta["vid-short01"] = &youtube.Metadata{
		VideoID:         "vid-short01",
		DurationSeconds: 35,
		IsShort:         true,
	}

	stats, err := h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected 1 skipped item, got %+v", stats)
	}

	item := h.mustGet(t, "vid-short01")
	if item.Status != store.StatusFailedPermanent {
		t.Fatalf("expected failed_permanent, got %s", item.Status)
	}
	if h.transcripts.calls != 0 {
		t.Fatal("skipped short must not reach the transcript step")
	}
}

func TestRunOnceContinuesWhenMetadataFails(t *testing.T) {
	h := newHarness(t)
	testsupport.NewVideo(t, h.store, "vid-nometa", "Feed Title")
	h.metadata.err = errors.New("yt-dlp exploded")

	stats, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("metadata failure must not fail the item: %+v", stats)
	}

	item := h.mustGet(t, "vid-nometa")
	if item.Title != "Feed Title" {
		t.Fatalf("expected feed title kept, got %q", item.Title)
	}
}

func TestRunOnceRefusesConcurrentRun(t *testing.T) {
	h := newHarness(t)

	other := runlock.New(h.cfg.LockPath())
	if err := other.Acquire(context.Background(), "run-other", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer other.Release()

	_, err := h.runner.RunOnce(context.Background())
	if !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
}

func TestRunOnceReclaimsStaleItemsBeforeProcessing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item := testsupport.NewVideo(t, h.store, "vid-stale01", "Crashed Mid-Flight")
	if err := h.store.Transition(ctx, item, store.StatusFetchingMetadata); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := h.store.Transition(ctx, item, store.StatusFetchingTranscript); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	// No heartbeat was ever written, so the item is reclaimable.

	stats, err := h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed item, got %+v", stats)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("reclaimed item should be processed in the same run: %+v", stats)
	}

	got := h.mustGet(t, "vid-stale01")
	if got.Status != store.StatusSuccess {
		t.Fatalf("expected success, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("reclaim must count as a failed attempt, got %d", got.RetryCount)
	}
}

func TestRunOnceRespectsMaxVideosPerChannel(t *testing.T) {
	h := newHarness(t)
	h.cfg.YouTube.MaxVideosPerChannel = 2
	ctx := context.Background()

	channel, _, err := h.store.AddChannel(ctx, "UCcapped0123456789abcde", "Capped")
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	after := channel.AddedAt.Add(time.Hour)
	h.feeds.videos["UCcapped0123456789abcde"] = []youtube.FeedVideo{
		{VideoID: "vid-cap0001", Published: after},
		{VideoID: "vid-cap0002", Published: after},
		{VideoID: "vid-cap0003", Published: after},
	}

	stats, err := h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if stats.Discovered != 2 {
		t.Fatalf("expected discovery capped at 2, got %+v", stats)
	}
}
