package config

const (
	defaultServiceName    = "io.portmsg.daemon"
	defaultTransport      = "auto"
	defaultReplyTimeoutMS = 100
	defaultStateDir       = "~/.local/state/portmsg"
	defaultLogFormat      = "auto"
	defaultLogLevel       = "info"
	defaultLogMaxSizeMB   = 10
	defaultLogMaxBackups  = 3
)

// Transports accepted in service.transport.
var knownTransports = []string{"auto", "unix", "mach"}

// Default returns a Config populated with defaults. Directory fields that
// depend on the environment are filled in by Load.
func Default() Config {
	return Config{
		Service: Service{
			Name:           defaultServiceName,
			Transport:      defaultTransport,
			ReplyTimeoutMS: defaultReplyTimeoutMS,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}
