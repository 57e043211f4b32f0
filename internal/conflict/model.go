package conflict

// Kind classifies a detected conflict
type Kind int

const (
	KindContent Kind = iota
	KindMode
	KindDeleteModify
	KindRename
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindMode:
		return "mode"
	case KindDeleteModify:
		return "delete_modify"
	default:
		return "rename"
	}
}

// Conflict is a detected incompatibility between two hunk sets or
// between a change and a destination's current state. Conflicts are
// produced only by the detector and are transient, consumed within a
// single operation invocation.
type Conflict struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	FilePath     string `json:"file_path"`
	Description  string `json:"description"`
	OurContent   string `json:"our_content"`
	TheirContent string `json:"their_content"`
}
