package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recap/internal/store"
	"recap/internal/youtube"
)

// Service implements the item, channel, and settings operations over the
// store. Both the HTTP handlers and in-process callers use it.
type Service struct {
	store *store.Store
}

// NewService wraps a store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// AddItem queues a video from any supported locator shape.
func (s *Service) AddItem(ctx context.Context, locator string) (ItemView, bool, error) {
	videoID, err := youtube.ParseVideoID(locator)
	if err != nil {
		return ItemView{}, false, err
	}
	item, created, err := s.store.AddVideo(ctx, store.NewVideo{
		VideoID:    videoID,
		SourceKind: store.SourceManual,
	})
	if err != nil {
		return ItemView{}, false, err
	}
	return ItemViewFrom(item), created, nil
}

// ListItems returns items filtered by the optional status, channel, and
// source parameters.
func (s *Service) ListItems(ctx context.Context, statusFilter, channelID, sourceKind string, limit, offset int) ([]ItemView, error) {
	filter := store.ListFilter{ChannelID: channelID, Limit: limit, Offset: offset}
	if statusFilter != "" {
		for _, raw := range strings.Split(statusFilter, ",") {
			status, ok := store.ParseStatus(raw)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", raw)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if sourceKind != "" {
		kind, ok := store.ParseSourceKind(sourceKind)
		if !ok {
			return nil, fmt.Errorf("unknown source kind %q", sourceKind)
		}
		filter.SourceKind = kind
	}

	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ItemViewFrom(item))
	}
	return views, nil
}

// GetItem returns full item detail.
func (s *Service) GetItem(ctx context.Context, videoID string) (ItemDetail, error) {
	item, err := s.store.GetByVideoID(ctx, videoID)
	if err != nil {
		return ItemDetail{}, err
	}
	if item == nil {
		return ItemDetail{}, fmt.Errorf("%w: %s", store.ErrNotFound, videoID)
	}
	return ItemDetailFrom(item), nil
}

// RetryItem re-queues a failed item. Forcing also rescues failed_permanent
// items and clears the transcript failure cache so the full cascade runs
// again immediately.
func (s *Service) RetryItem(ctx context.Context, videoID string, force bool) (ItemView, error) {
	item, err := s.store.Retry(ctx, videoID, force)
	if err != nil {
		return ItemView{}, err
	}
	if force {
		if err := s.store.ClearTranscriptFailures(ctx, videoID); err != nil {
			return ItemView{}, err
		}
	}
	return ItemViewFrom(item), nil
}

// StopItem requests a stop; pending items fail immediately, in-flight items
// stop at the next step boundary.
func (s *Service) StopItem(ctx context.Context, videoID string) (ItemView, bool, error) {
	item, stopped, err := s.store.RequestStop(ctx, videoID)
	if err != nil {
		return ItemView{}, false, err
	}
	return ItemViewFrom(item), stopped, nil
}

// RemoveItem deletes an item and its cached transcript failures.
func (s *Service) RemoveItem(ctx context.Context, videoID string) error {
	removed, err := s.store.Remove(ctx, videoID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", store.ErrNotFound, videoID)
	}
	return s.store.ClearTranscriptFailures(ctx, videoID)
}

// AddChannel registers a channel for discovery from an id or URL.
func (s *Service) AddChannel(ctx context.Context, locator, name string) (ChannelView, error) {
	channelID, err := youtube.ParseChannelID(locator)
	if err != nil {
		return ChannelView{}, err
	}
	channel, _, err := s.store.AddChannel(ctx, channelID, name)
	if err != nil {
		return ChannelView{}, err
	}
	return ChannelViewFrom(channel), nil
}

// ListChannels returns every registered channel.
func (s *Service) ListChannels(ctx context.Context) ([]ChannelView, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ChannelView, 0, len(channels))
	for _, channel := range channels {
		views = append(views, ChannelViewFrom(channel))
	}
	return views, nil
}

// SetChannelEnabled toggles a channel.
func (s *Service) SetChannelEnabled(ctx context.Context, channelID string, enabled bool) error {
	updated, err := s.store.SetChannelEnabled(ctx, channelID, enabled)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return nil
}

// RemoveChannel unregisters a channel.
func (s *Service) RemoveChannel(ctx context.Context, channelID string) error {
	removed, err := s.store.RemoveChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return nil
}

// Settings returns the settings table.
func (s *Service) Settings(ctx context.Context) (SettingsView, error) {
	all, err := s.store.AllSettings(ctx)
	if err != nil {
		return SettingsView{}, err
	}
	return SettingsView{Settings: all}, nil
}

// SetSetting writes one runtime setting after validating the key.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	if !knownSettingKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	return s.store.SetSetting(ctx, key, value)
}

// DeleteSetting restores a setting to its default.
func (s *Service) DeleteSetting(ctx context.Context, key string) error {
	deleted, err := s.store.DeleteSetting(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("setting not set: %s", key)
	}
	return nil
}

// ItemCounts returns items grouped by status with string keys.
func (s *Service) ItemCounts(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(stats))
	for status, count := range stats {
		counts[string(status)] = count
	}
	return counts, nil
}

// IsNotFound reports whether an error is the not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func knownSettingKey(key string) bool {
	switch key {
	case store.SettingCheckInterval, store.SettingMaxVideoAge, store.SettingSkipShorts,
		store.SettingMinDurationSec, store.SettingSendEmail, store.SettingPromptTemplate,
		store.SettingSummaryWords:
		return true
	}
	return false
}
