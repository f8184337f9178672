package client

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopRequested
	StateTerminated
)

func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// FileState describes the nested watcher of a DirWatchClient.
type FileState int32

const (
	FileNone FileState = iota
	FileActive
	FileSwitching
)

func (state FileState) String() string {
	switch state {
	case FileNone:
		return "no_active_file"
	case FileActive:
		return "active_file"
	case FileSwitching:
		return "switching"
	default:
		return "unknown"
	}
}
