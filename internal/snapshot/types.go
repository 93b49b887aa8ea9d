package snapshot

import (
	"os"
	"time"

	"github.com/blackwell-systems/swapsafe/internal/store"
)

// Manifest is the JSON document written alongside a snapshot's file copies.
// It is the restore procedure: every entry says what to put back where, and
// the patterns let a restore find and delete files a mutation created that
// no entry covers.
type Manifest struct {
	Component string       `json:"component"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Patterns  []string     `json:"patterns,omitempty"`
	Files     []*FileEntry `json:"files"`
}

// FileEntry describes one captured path. Stored is the copy's name relative
// to the snapshot directory. A Link entry records a symlink and its target;
// restoring it recreates the link rather than copying bytes. An Absent entry
// records that the path did not exist at capture time; restoring it deletes
// the path.
type FileEntry struct {
	Path   string      `json:"path"`
	Stored string      `json:"stored,omitempty"`
	Link   string      `json:"link,omitempty"`
	Mode   os.FileMode `json:"mode,omitempty"`
	Size   int64       `json:"size"`
	SHA256 string      `json:"sha256,omitempty"`
	Absent bool        `json:"absent,omitempty"`
}

// Snapshot is a captured snapshot: its database ID, the directory holding
// the file copies and manifest, and the parsed manifest.
type Snapshot struct {
	ID       int64
	Dir      string
	Manifest *Manifest
}

// Manager captures, restores, and disposes snapshots. File copies live
// under dir; records go to the store.
type Manager struct {
	store *store.Store
	dir   string
}

// New creates a snapshot Manager storing file copies under dir.
func New(st *store.Store, dir string) *Manager {
	return &Manager{store: st, dir: dir}
}

// Dir returns the root directory snapshots are stored under.
func (m *Manager) Dir() string {
	return m.dir
}
