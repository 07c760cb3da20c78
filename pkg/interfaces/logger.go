package interfaces

// Logger is the logging surface shared by the CLI, the API and the pipeline.
// With returns a child logger that tags every line with key=value.
type Logger interface {
	Info(message string)
	Error(message string)
	Warn(message string)
	Debug(message string)
	With(key, value string) Logger
}
