package log

const (
	DefaultPattern    = "%time [%level] %msg %field%n"
	DefaultTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Appender types.
const (
	AppenderConsole = "console"
	AppenderFile    = "file"
)

type LoggerConfig struct {
	Level     string           `mapstructure:"level"`
	Pattern   string           `mapstructure:"pattern"`
	Time      string           `mapstructure:"time"`
	Appenders []AppenderConfig `mapstructure:"appenders"`
}

// AppenderConfig selects one output; Options is decoded per Type.
type AppenderConfig struct {
	Type    string                 `mapstructure:"type"`
	Options map[string]interface{} `mapstructure:"options"`
}

// ConsoleAppenderOpt writes to stdout or stderr.
type ConsoleAppenderOpt struct {
	Target string `mapstructure:"target"` // stdout / stderr
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:   "info",
		Pattern: DefaultPattern,
		Time:    DefaultTimeLayout,
		Appenders: []AppenderConfig{
			{Type: AppenderConsole, Options: map[string]interface{}{"target": "stderr"}},
		},
	}
}
