package pbt

// State is the stage of the exploit cycle that a Worker is in. It also says who owns the Network and
// Configuration of the Worker: the Worker itself while Running or ReadyToExploit, and the
// Population while Waiting.
type State int32

const (
	// Running workers are taking mini-batch steps
	Running State = iota

	// ReadyToExploit workers have finished their epochs and are waiting for the Population to
	// take them
	ReadyToExploit

	// Waiting workers have been taken by the Population, which may replace their Network and
	// Configuration before resuming them
	Waiting

	// Stopped is terminal
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ReadyToExploit:
		return "ready"
	case Waiting:
		return "waiting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
