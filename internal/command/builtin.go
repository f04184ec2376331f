package command

// Frequency is how often the engine emits a requested output.
type Frequency string

const (
	Once   Frequency = "once"
	Always Frequency = "always"
	Never  Frequency = "never"
)

// Reserved command names.
const (
	TerminateName = "terminate"
	DoNothingName = "do_nothing"
)

// Terminate asks the build to quit. No response follows.
func Terminate() Command { return New(TerminateName, nil) }

// DoNothing is an empty step.
func DoNothing() Command { return New(DoNothingName, nil) }

// SetErrorHandling sets which log levels make the build emit a quit signal.
func SetErrorHandling(onError, onException, onWarning bool) Command {
	return New("set_error_handling", Params{
		"error":     onError,
		"exception": onException,
		"warning":   onWarning,
	})
}

// SendVersion requests the vers frame.
func SendVersion() Command { return New("send_version", nil) }

// LoadScene loads an empty or named scene. The engine answers after the
// scene is ready.
func LoadScene(name string) Command {
	if name == "" {
		return New("create_empty_environment", nil)
	}
	return New("load_scene", Params{"scene_name": name})
}

// Send builds a send_* output request with a frequency.
func Send(name string, f Frequency) Command {
	return New(name, Params{"frequency": string(f)})
}

// AddObject places a model from a library.
func AddObject(name string, id int, position Vector3, rotation Vector3, library string) Command {
	p := Params{
		"name":     name,
		"id":       id,
		"position": position,
		"rotation": rotation,
	}
	if library != "" {
		p["url"] = library
	}
	return New("add_object", p)
}

// DestroyObject removes an object.
func DestroyObject(id int) Command {
	return New("destroy_object", Params{"id": id})
}
