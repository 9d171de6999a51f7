package notify

// Policy decides how a fired reminder is presented. It is built once by the
// caller and handed to the Handler; nothing reads it from global state.
type Policy struct {
	Banner bool
	Sound  bool
	Badge  bool
}

func DefaultPolicy() Policy {
	return Policy{Banner: true, Sound: true, Badge: true}
}
