package playback

// DisplayMode is what the screen should be showing, derived from the
// device's registration and content state
type DisplayMode int

const (
	// ModeUnregistered means the device has no identity with the backend yet
	ModeUnregistered DisplayMode = iota
	// ModeNotLinked means the device is registered but not assigned a screen
	ModeNotLinked
	// ModeWaitingForContent means the device is linked but has no playlist
	ModeWaitingForContent
	// ModePlaying means normal playlist playback
	ModePlaying
)

// String returns the mode name for logs and the status API
func (m DisplayMode) String() string {
	switch m {
	case ModeUnregistered:
		return "unregistered"
	case ModeNotLinked:
		return "not_linked"
	case ModeWaitingForContent:
		return "waiting_for_content"
	case ModePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// ModeProvider reports the current display mode. Implementations derive it
// from persisted device state and content availability.
type ModeProvider interface {
	Mode() DisplayMode
}

// ModeProviderFunc adapts a function to the ModeProvider interface
type ModeProviderFunc func() DisplayMode

// Mode calls the underlying function
func (f ModeProviderFunc) Mode() DisplayMode {
	return f()
}

// Placeholders maps non-playing display modes to the status images shown
// instead of playlist content
type Placeholders struct {
	Unregistered      string
	NotLinked         string
	WaitingForContent string
}

// For returns the placeholder image path for a non-playing mode, or an
// empty string for ModePlaying
func (p Placeholders) For(mode DisplayMode) string {
	switch mode {
	case ModeUnregistered:
		return p.Unregistered
	case ModeNotLinked:
		return p.NotLinked
	case ModeWaitingForContent:
		return p.WaitingForContent
	default:
		return ""
	}
}
