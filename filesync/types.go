package filesync

// FileKind selects which sidecar-managed tree an operation works on.
type FileKind string

const (
	// KindProject is the notebook project tree.
	KindProject FileKind = "project"
	// KindDataset is the shared dataset tree.
	KindDataset FileKind = "dataset"
)

// ChangeType classifies how a remote file differs from the local copy.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Prefix returns the one-character marker status listings use for the
// change, or "" for a value the sidecar invented after this client.
func (c ChangeType) Prefix() string {
	switch c {
	case ChangeAdded:
		return "+"
	case ChangeModified:
		return "~"
	case ChangeDeleted:
		return "-"
	default:
		return ""
	}
}

// UserMessage is a human readable confirmation from the sidecar.
type UserMessage struct {
	Message string `json:"message"`
}

// FileChange is one remote file that differs from the local file system.
type FileChange struct {
	ChangeType ChangeType `json:"change_type"`
	Path       string     `json:"path"`
}

// String renders the change the way status listings display it.
func (c FileChange) String() string {
	if prefix := c.ChangeType.Prefix(); prefix != "" {
		return prefix + " " + c.Path
	}

	return c.Path
}

// RemoteStatus lists remote changes relative to the local tree.
type RemoteStatus struct {
	FileChanges []FileChange `json:"file_changes"`
}

// HasChanges reports whether anything differs.
func (s *RemoteStatus) HasChanges() bool {
	return s != nil && len(s.FileChanges) > 0
}
