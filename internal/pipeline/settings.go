package pipeline

import (
	"context"
	"strconv"

	"recap/internal/store"
)

// runSettings are the tunables re-read from the settings table at the start
// of every run, so changes take effect without a restart.
type runSettings struct {
	MaxVideoAgeDays    int
	SkipShorts         bool
	MinDurationSeconds int64
	SendEmail          bool
	PromptTemplate     string
	SummaryWords       int
}

func loadRunSettings(ctx context.Context, st *store.Store) (runSettings, error) {
	settings := runSettings{
		MaxVideoAgeDays:    0,
		SkipShorts:         true,
		MinDurationSeconds: 0,
		SendEmail:          true,
	}

	raw, err := st.GetSetting(ctx, store.SettingMaxVideoAge, "")
	if err != nil {
		return settings, err
	}
	if raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days >= 0 {
			settings.MaxVideoAgeDays = days
		}
	}

	raw, err = st.GetSetting(ctx, store.SettingSkipShorts, "true")
	if err != nil {
		return settings, err
	}
	if parsed, err := strconv.ParseBool(raw); err == nil {
		settings.SkipShorts = parsed
	}

	raw, err = st.GetSetting(ctx, store.SettingMinDurationSec, "")
	if err != nil {
		return settings, err
	}
	if raw != "" {
		if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil && seconds >= 0 {
			settings.MinDurationSeconds = seconds
		}
	}

	raw, err = st.GetSetting(ctx, store.SettingSendEmail, "true")
	if err != nil {
		return settings, err
	}
	if parsed, err := strconv.ParseBool(raw); err == nil {
		settings.SendEmail = parsed
	}

	settings.PromptTemplate, err = st.GetSetting(ctx, store.SettingPromptTemplate, "")
	if err != nil {
		return settings, err
	}

	raw, err = st.GetSetting(ctx, store.SettingSummaryWords, "")
	if err != nil {
		return settings, err
	}
	if raw != "" {
		if words, err := strconv.Atoi(raw); err == nil && words > 0 {
			settings.SummaryWords = words
		}
	}
	return settings, nil
}
