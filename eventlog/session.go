package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ActorInfo is the roster entry stored in session metadata.
type ActorInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      string   `json:"role,omitempty"`
	Expertise []string `json:"expertise,omitempty"`
}

// SessionMeta describes a persisted session. It is written to meta.json in
// the session directory on creation and updated on every resume.
type SessionMeta struct {
	SessionID  string      `json:"session_id"`
	PolicyPath string      `json:"policy_path,omitempty"`
	Actors     []ActorInfo `json:"actors,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ResumedAt  []time.Time `json:"resumed_at,omitempty"`
}

const (
	logFileName   = "events.jsonl"
	indexFileName = "index.json"
	metaFileName  = "meta.json"
)

// newSessionID allocates a collision-resistant session identifier from the
// creation time plus a random suffix.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

func writeMeta(dir string, meta SessionMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, metaFileName), data)
}

func readMeta(dir string) (SessionMeta, error) {
	var meta SessionMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return meta, fmt.Errorf("read session meta: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode session meta: %w", err)
	}
	return meta, nil
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated file behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
