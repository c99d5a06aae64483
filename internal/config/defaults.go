package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/calwatch",
			SQLiteFile: "calwatch.db",
		},
		Sync: SyncConfig{
			LookbackDays:        0,
			FetchTimeoutSeconds: 30,
			MeetingDomains:      DefaultMeetingDomains(),
		},
		Serve: ServeConfig{
			Host: "127.0.0.1",
			Port: 8719,
		},
		Watch: WatchConfig{
			Schedule: "*/30 * * * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultMeetingDomains returns the conferencing providers scanned for
// meeting links, highest priority first. Order matters: the first URL
// on the earliest-listed domain wins over any later match.
func DefaultMeetingDomains() []string {
	return []string{
		"zoom.us",
		"meet.google.com",
		"teams.microsoft.com",
		"webex.com",
		"gotomeeting.com",
		"gotowebinar.com",
		"jitsi",
		"whereby.com",
		"bluejeans.com",
	}
}
