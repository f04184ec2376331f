package output

// Images ("imag") holds the rendered passes of one avatar's sensor.
type Images struct{ tb table }

// NewImages reads an "imag" frame.
func NewImages(frame []byte) (*Images, error) {
	tb, err := root(frame, KindImages)
	if err != nil {
		return nil, err
	}
	return &Images{tb: tb}, nil
}

func (*Images) Kind() Kind { return KindImages }

func (d *Images) AvatarID() string { return d.tb.str(0) }
func (d *Images) SensorName() string { return d.tb.str(1) }
func (d *Images) NumPasses() int { return d.tb.vecLen(2) }
func (d *Images) PassMask(i int) string {
	return d.tb.tableAt(2, i).str(0)
}

// Image returns the encoded bytes of pass i. The slice aliases the frame.
func (d *Images) Image(i int) []byte { return d.tb.tableAt(2, i).bytes(1) }
func (d *Images) Width() int32 { return d.tb.int32(3) }
func (d *Images) Height() int32 { return d.tb.int32(4) }

// Keyboard ("keyb") lists the keys pressed, held and released this frame.
type Keyboard struct{ tb table }

// NewKeyboard reads a "keyb" frame.
func NewKeyboard(frame []byte) (*Keyboard, error) {
	tb, err := root(frame, KindKeyboard)
	if err != nil {
		return nil, err
	}
	return &Keyboard{tb: tb}, nil
}

func (*Keyboard) Kind() Kind { return KindKeyboard }

func (d *Keyboard) Pressed() []string { return d.tb.strs(0) }
func (d *Keyboard) Held() []string { return d.tb.strs(1) }
func (d *Keyboard) Released() []string { return d.tb.strs(2) }

// MouseButton indexes the button rows of a Mouse frame.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
)

// Mouse ("mous") holds the cursor position, scroll and button state.
type Mouse struct{ tb table }

// NewMouse reads a "mous" frame.
func NewMouse(frame []byte) (*Mouse, error) {
	tb, err := root(frame, KindMouse)
	if err != nil {
		return nil, err
	}
	return &Mouse{tb: tb}, nil
}

func (*Mouse) Kind() Kind { return KindMouse }

func (d *Mouse) Position() [2]float32 {
	return [2]float32{d.tb.float32At(0, 0), d.tb.float32At(0, 1)}
}

func (d *Mouse) ScrollDelta() [2]float32 {
	return [2]float32{d.tb.float32At(1, 0), d.tb.float32At(1, 1)}
}

// buttons is a 3x3 grid: one row per button of [pressed, held, released].
func (d *Mouse) Pressed(b MouseButton) bool { return d.tb.boolAt(2, 3*int(b)) }
func (d *Mouse) Held(b MouseButton) bool { return d.tb.boolAt(2, 3*int(b)+1) }
func (d *Mouse) Released(b MouseButton) bool { return d.tb.boolAt(2, 3*int(b)+2) }

// LogLevel is the severity of a build log message.
type LogLevel uint8

const (
	LogError LogLevel = iota
	LogWarning
	LogMessageLevel
)

func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "error"
	case LogWarning:
		return "warning"
	default:
		return "message"
	}
}

// LogMessage ("logm") is a message from the build's own log.
type LogMessage struct{ tb table }

// NewLogMessage reads a "logm" frame.
func NewLogMessage(frame []byte) (*LogMessage, error) {
	tb, err := root(frame, KindLogMessage)
	if err != nil {
		return nil, err
	}
	return &LogMessage{tb: tb}, nil
}

func (*LogMessage) Kind() Kind { return KindLogMessage }

func (d *LogMessage) Message() string { return d.tb.str(0) }
func (d *LogMessage) Level() LogLevel { return LogLevel(d.tb.uint8(1)) }
func (d *LogMessage) ObjectType() string { return d.tb.str(2) }

// Version ("vers") reports the build and engine versions.
type Version struct{ tb table }

// NewVersion reads a "vers" frame.
func NewVersion(frame []byte) (*Version, error) {
	tb, err := root(frame, KindVersion)
	if err != nil {
		return nil, err
	}
	return &Version{tb: tb}, nil
}

func (*Version) Kind() Kind { return KindVersion }

func (d *Version) UnityVersion() string { return d.tb.str(0) }
func (d *Version) TDWVersion() string { return d.tb.str(1) }
func (d *Version) Standalone() bool { return d.tb.bool(2) }

// QuitSignal ("quit") is sent when the build shuts down.
type QuitSignal struct{ tb table }

// NewQuitSignal reads a "quit" frame.
func NewQuitSignal(frame []byte) (*QuitSignal, error) {
	tb, err := root(frame, KindQuitSignal)
	if err != nil {
		return nil, err
	}
	return &QuitSignal{tb: tb}, nil
}

func (*QuitSignal) Kind() Kind { return KindQuitSignal }

// OK is false when the build quit because of an error.
func (d *QuitSignal) OK() bool { return d.tb.bool(0) }

// FailedToReceive ("ftre") is the placeholder the build sends when it lost
// the previous message. The controller resends.
type FailedToReceive struct{ tb table }

// NewFailedToReceive reads an "ftre" frame.
func NewFailedToReceive(frame []byte) (*FailedToReceive, error) {
	tb, err := root(frame, KindFailedToReceive)
	if err != nil {
		return nil, err
	}
	return &FailedToReceive{tb: tb}, nil
}

func (*FailedToReceive) Kind() Kind { return KindFailedToReceive }

// IsFailedToReceive reports whether resp is the [ftre, sentinel] placeholder.
func IsFailedToReceive(resp Response) bool {
	return len(resp) > 1 && DataTypeID(resp[0]) == KindFailedToReceive.Tag()
}
