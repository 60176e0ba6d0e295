package config

const (
	defaultConfigPath         = "~/.config/scribe/config.toml"
	defaultWorkDir            = "~/.local/share/scribe/work"
	defaultLogDir             = "~/.local/share/scribe/logs"
	defaultStateDir           = "~/.local/share/scribe/state"
	defaultModel              = "tiny"
	defaultLanguage           = "auto"
	defaultRecognizerCommand  = "python3"
	defaultDevice             = "cpu"
	defaultLoadTimeoutSeconds = 600
	defaultFFmpegBinary       = "ffmpeg"
	defaultSampleRate         = 16000
	defaultChannels           = 1
	defaultSubtitleFormat     = "srt"
	defaultServerBind         = "127.0.0.1:3001"
	defaultMaxUploadMB        = 25
	defaultMaxConcurrent      = 1
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Recognizer: Recognizer{
			Model:              defaultModel,
			Language:           defaultLanguage,
			Command:            defaultRecognizerCommand,
			Device:             defaultDevice,
			WordTimestamps:     true,
			LoadTimeoutSeconds: defaultLoadTimeoutSeconds,
		},
		Normalizer: Normalizer{
			FFmpegBinary: defaultFFmpegBinary,
			SampleRate:   defaultSampleRate,
			Channels:     defaultChannels,
		},
		Subtitles: Subtitles{
			DefaultFormat: defaultSubtitleFormat,
		},
		Server: Server{
			Bind:          defaultServerBind,
			MaxUploadMB:   defaultMaxUploadMB,
			MaxConcurrent: defaultMaxConcurrent,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
