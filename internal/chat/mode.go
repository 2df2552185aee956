package chat

// Mode selects the fixed system instruction used for every request in a
// conversation.
type Mode string

const (
	ModeGeneral  Mode = "general"
	ModeExplain  Mode = "explain"
	ModeRefactor Mode = "refactor"
	ModeBugHunt  Mode = "bughunt"
	ModeOptimize Mode = "optimize"
)

// Modes lists all operating modes in display order.
func Modes() []Mode {
	return []Mode{ModeGeneral, ModeExplain, ModeRefactor, ModeBugHunt, ModeOptimize}
}

// Instructions returns the system instruction for the mode. Unknown modes
// fall back to the general-purpose instruction.
func (m Mode) Instructions() string {
	switch m {
	case ModeExplain:
		return "Explain code and concepts in detail, as if mentoring a developer."
	case ModeRefactor:
		return "Refactor the code for readability, maintainability, and best practices."
	case ModeBugHunt:
		return "Focus on finding bugs and potential issues in the code."
	case ModeOptimize:
		return "Optimize the code for performance and efficiency."
	default:
		return "Answer as a general-purpose assistant."
	}
}

// Next cycles to the following mode in display order.
func (m Mode) Next() Mode {
	modes := Modes()
	for i, mode := range modes {
		if mode == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return ModeGeneral
}
