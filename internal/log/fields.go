package log

// Field names shared by the structured log output.
const (
	FieldComponent = "component"
	FieldUser      = "user"
)

// Component names for the binaries.
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
)
