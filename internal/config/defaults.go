package config

const (
	defaultLogDir                = "~/.local/share/natrender/logs"
	defaultSnapshotDir           = "~/.local/share/natrender/snapshots"
	defaultSocketName            = "natrender.sock"
	defaultSnapshotName          = "render_save.toml"
	defaultMaxParallel           = 4
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultNotifyRequestTimeout  = 10
	defaultRenderSeparateProcess = false
	defaultRenderQueuing         = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			SnapshotDir: defaultSnapshotDir,
		},
		Render: Render{
			SeparateProcess: defaultRenderSeparateProcess,
			Queuing:         defaultRenderQueuing,
			MaxParallel:     defaultMaxParallel,
			SnapshotName:    defaultSnapshotName,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RenderStarted:  false,
			RenderFinished: true,
			RenderFailed:   true,
			QueueDrained:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
