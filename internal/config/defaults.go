package config

const (
	defaultCatalogDir       = "~/.local/share/culler"
	defaultQuarantineDir    = "~/.local/share/culler/quarantine"
	defaultLogDir           = "~/.local/share/culler/logs"
	defaultWorkers          = 4
	defaultChunkKiB         = 512
	defaultPrefixKiB        = 64
	defaultLockStaleMinutes = 120
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// defaultMediaExtensions covers the photo, RAW, and video formats a personal
// NAS archive typically holds.
var defaultMediaExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif",
	".webp", ".heic", ".heif", ".raw", ".cr2", ".nef", ".arw", ".dng",
	".mp4", ".mov", ".avi", ".mkv", ".wmv", ".m4v",
	".3gp", ".webm", ".mpg", ".mpeg",
}

// defaultSkipDirs excludes NAS housekeeping trees from traversal.
var defaultSkipDirs = []string{
	"@eaDir", "@Recycle", "@tmp", "#recycle", "#snapshot", "ToBeDeleted",
}

var defaultSkipFiles = []string{
	"Thumbs.db", "desktop.ini", ".DS_Store",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogDir:    defaultCatalogDir,
			QuarantineDir: defaultQuarantineDir,
			LogDir:        defaultLogDir,
		},
		Scan: Scan{
			MediaExtensions: append([]string(nil), defaultMediaExtensions...),
			SkipDirs:        append([]string(nil), defaultSkipDirs...),
			SkipFiles:       append([]string(nil), defaultSkipFiles...),
			Workers:         defaultWorkers,
			ChunkKiB:        defaultChunkKiB,
			PrefixKiB:       defaultPrefixKiB,
		},
		Workflow: Workflow{
			LockStaleMinutes: defaultLockStaleMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
