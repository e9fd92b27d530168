package config

const (
	defaultDataDir             = "~/.local/share/recap"
	defaultLogDir              = "~/.local/share/recap/logs"
	defaultAPIBind             = "127.0.0.1:7487"
	defaultFeedBaseURL         = "https://www.youtube.com/feeds/videos.xml"
	defaultYtDlpBinary         = "yt-dlp"
	defaultMaxVideosPerChannel = 20
	defaultYouTubeTimeout      = 30
	defaultTimedtextBaseURL    = "https://www.youtube.com/api/timedtext"
	defaultSupadataBaseURL     = "https://api.supadata.ai/v1"
	defaultTranscriptTimeout   = 30
	defaultTranscriptLanguage  = "en"
	defaultCooldownHours       = 24
	defaultSummarizerBaseURL   = "https://api.openai.com/v1"
	defaultSummarizerModel     = "gpt-4o-mini"
	defaultSummarizerTimeout   = 120
	defaultSMTPPort            = 587
	defaultEmailTimeout        = 30
	defaultMaxRetries          = 3
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 300
	defaultIntervalMinutes     = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		YouTube: YouTube{
			FeedBaseURL:         defaultFeedBaseURL,
			YtDlpBinary:         defaultYtDlpBinary,
			MaxVideosPerChannel: defaultMaxVideosPerChannel,
			RequestTimeout:      defaultYouTubeTimeout,
		},
		Transcript: Transcript{
			CaptionsEnabled:  true,
			TimedtextEnabled: true,
			YtDlpEnabled:     true,
			SupadataEnabled:  false,
			SupadataBaseURL:  defaultSupadataBaseURL,
			TimedtextBaseURL: defaultTimedtextBaseURL,
			CooldownHours:    defaultCooldownHours,
			RequestTimeout:   defaultTranscriptTimeout,
			Language:         defaultTranscriptLanguage,
		},
		Summarizer: Summarizer{
			BaseURL:        defaultSummarizerBaseURL,
			Model:          defaultSummarizerModel,
			TimeoutSeconds: defaultSummarizerTimeout,
		},
		Email: Email{
			SMTPPort:       defaultSMTPPort,
			TimeoutSeconds: defaultEmailTimeout,
		},
		Pipeline: Pipeline{
			MaxRetries:        defaultMaxRetries,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Scheduler: Scheduler{
			DefaultIntervalMinutes: defaultIntervalMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
