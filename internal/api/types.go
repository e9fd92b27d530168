package api

import (
	"time"

	"recap/internal/pipeline"
	"recap/internal/store"
)

// ItemView is the wire representation of a pipeline item. The transcript is
// omitted from list responses; Detail carries it.
type ItemView struct {
	VideoID          string     `json:"video_id"`
	Title            string     `json:"title,omitempty"`
	ChannelID        string     `json:"channel_id,omitempty"`
	ChannelName      string     `json:"channel_name,omitempty"`
	DurationSeconds  int64      `json:"duration_seconds,omitempty"`
	UploadedAt       *time.Time `json:"uploaded_at,omitempty"`
	SourceKind       string     `json:"source_kind"`
	Status           string     `json:"status"`
	RetryCount       int        `json:"retry_count"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	TranscriptSource string     `json:"transcript_source,omitempty"`
	EmailSent        bool       `json:"email_sent"`
	StopRequested    bool       `json:"stop_requested,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ItemDetail extends ItemView with the large text fields.
type ItemDetail struct {
	ItemView
	Transcript string `json:"transcript,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// ChannelView is the wire representation of a monitored channel.
type ChannelView struct {
	ChannelID string    `json:"channel_id"`
	Name      string    `json:"name,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	Enabled   bool      `json:"enabled"`
}

// StatusView summarizes daemon state for the status endpoint.
type StatusView struct {
	Running      bool               `json:"running"`
	RunInFlight  bool               `json:"run_in_flight"`
	NextRunAt    *time.Time         `json:"next_run_at,omitempty"`
	LastRun      *pipeline.RunStats `json:"last_run,omitempty"`
	ItemCounts   map[string]int     `json:"item_counts"`
	DatabasePath string             `json:"database_path"`
	LockPath     string             `json:"lock_path"`
}

// SettingsView is the settings table as key/value pairs.
type SettingsView struct {
	Settings map[string]string `json:"settings"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ItemViewFrom converts a store item for list responses.
func ItemViewFrom(item *store.Item) ItemView {
	return ItemView{
		VideoID:          item.VideoID,
		Title:            item.Title,
		ChannelID:        item.ChannelID,
		ChannelName:      item.ChannelName,
		DurationSeconds:  item.DurationSeconds,
		UploadedAt:       item.UploadedAt,
		SourceKind:       string(item.SourceKind),
		Status:           string(item.Status),
		RetryCount:       item.RetryCount,
		ErrorMessage:     item.ErrorMessage,
		TranscriptSource: item.TranscriptSource,
		EmailSent:        item.EmailSent,
		StopRequested:    item.StopRequested,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
}

// ItemDetailFrom converts a store item for detail responses.
func ItemDetailFrom(item *store.Item) ItemDetail {
	return ItemDetail{
		ItemView:   ItemViewFrom(item),
		Transcript: item.Transcript,
		Summary:    item.Summary,
	}
}

// ChannelViewFrom converts a store channel.
func ChannelViewFrom(channel *store.Channel) ChannelView {
	return ChannelView{
		ChannelID: channel.ChannelID,
		Name:      channel.Name,
		AddedAt:   channel.AddedAt,
		Enabled:   channel.Enabled,
	}
}
