package messages

// Message is the base interface for events sent to overlay listeners.
type Message interface {
	Type() string
}

// Event names, as seen by draw overlays.
const (
	TypeStartDrawing    = "start-drawing"
	TypeStopDrawing     = "stop-drawing"
	TypeChangeColor     = "change-color"
	TypeSettingsUpdated = "settings-updated"
	TypeScreenshotDone  = "screenshot-done"
)

// StartDrawing switches every draw overlay into drawing mode.
type StartDrawing struct {
	Color string
}

func (m StartDrawing) Type() string { return TypeStartDrawing }

// StopDrawing leaves drawing mode and clears the canvases.
type StopDrawing struct{}

func (m StopDrawing) Type() string { return TypeStopDrawing }

// ChangeColor sets the pen color.
type ChangeColor struct {
	Color string
}

func (m ChangeColor) Type() string { return TypeChangeColor }

// SettingsUpdated carries settings overlays care about.
type SettingsUpdated struct {
	DefaultColor string
	BreakMinutes int
	TypingSpeed  string
}

func (m SettingsUpdated) Type() string { return TypeSettingsUpdated }

// ScreenshotDone reports the end of a capture session. Error is empty on
// success.
type ScreenshotDone struct {
	Error string
}

func (m ScreenshotDone) Type() string { return TypeScreenshotDone }

// MessageEnvelope wraps messages with routing metadata.
type MessageEnvelope struct {
	From    string  // Source name
	To      string  // Destination listener ("*" for broadcast)
	Message Message // The actual message
}

// Listener and source names.
const (
	Broadcast     = "*"
	SourceDraw    = "draw"
	SourceCapture = "capture"
)
