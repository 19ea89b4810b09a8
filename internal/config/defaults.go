package config

const (
	defaultCalibreLibraryDir      = "~/Calibre Library"
	defaultStateDir               = "~/.local/share/bindery"
	defaultArtifactDir            = "~/.local/share/bindery/artifacts"
	defaultTempDir                = "~/.local/share/bindery/tmp"
	defaultLogDir                 = "~/.local/share/bindery/logs"
	defaultAPIBind                = "127.0.0.1:8790"
	defaultReconcileInterval      = 60
	defaultTombstoneGraceMinutes  = 60
	defaultWatchDebounceSeconds   = 5
	defaultRetentionDays          = 30
	defaultCleanupIntervalMinutes = 360
	defaultMaxConcurrent          = 2
	defaultConversionTimeout      = 600
	defaultEbookConvertBinary     = "ebook-convert"
	defaultKepubifyBinary         = "kepubify"
	defaultUnrarBinary            = "unrar"
	defaultSevenZipBinary         = "7z"
	defaultPdfToTextBinary        = "pdftotext"
	defaultThumbnailWidth         = 300
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CalibreLibraryDir: defaultCalibreLibraryDir,
			StateDir:          defaultStateDir,
			ArtifactDir:       defaultArtifactDir,
			TempDir:           defaultTempDir,
			LogDir:            defaultLogDir,
			APIBind:           defaultAPIBind,
		},
		Reconcile: Reconcile{
			IntervalMinutes:       defaultReconcileInterval,
			TombstoneGraceMinutes: defaultTombstoneGraceMinutes,
			WatchLibrary:          true,
			WatchDebounceSeconds:  defaultWatchDebounceSeconds,
		},
		Artifacts: Artifacts{
			RetentionDays:          defaultRetentionDays,
			CleanupIntervalMinutes: defaultCleanupIntervalMinutes,
		},
		Conversion: Conversion{
			MaxConcurrent:      defaultMaxConcurrent,
			TimeoutSeconds:     defaultConversionTimeout,
			EbookConvertBinary: defaultEbookConvertBinary,
			KepubifyBinary:     defaultKepubifyBinary,
			UnrarBinary:        defaultUnrarBinary,
			SevenZipBinary:     defaultSevenZipBinary,
			PdfToTextBinary:    defaultPdfToTextBinary,
			ThumbnailWidth:     defaultThumbnailWidth,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Reconcile:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
