package config

const (
	defaultDataDir              = "~/.local/share/singalong"
	defaultLogDir               = "~/.local/share/singalong/logs"
	defaultAPIBind              = "127.0.0.1:7531"
	defaultYtDlpBinary          = "yt-dlp"
	defaultYtDlpDownloadURL     = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp"
	defaultFFprobeBinary        = "ffprobe"
	defaultPythonBinary         = "python3"
	defaultSeparatorScript      = "~/.local/share/singalong/separation/separate.py"
	defaultProbeTimeout         = 60
	defaultDownloadTimeout      = 3600
	defaultSeparationTimeout    = 7200
	defaultModelDownloadTimeout = 1800
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tools: Tools{
			YtDlpBinary:      defaultYtDlpBinary,
			YtDlpAutoInstall: true,
			YtDlpDownloadURL: defaultYtDlpDownloadURL,
			FFprobeBinary:    defaultFFprobeBinary,
			PythonBinary:     defaultPythonBinary,
			SeparatorScript:  defaultSeparatorScript,
		},
		Timeouts: Timeouts{
			Probe:         defaultProbeTimeout,
			Download:      defaultDownloadTimeout,
			Separation:    defaultSeparationTimeout,
			ModelDownload: defaultModelDownloadTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
