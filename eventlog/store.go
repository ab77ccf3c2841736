package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/logging"
)

// indexEntry locates one event record inside the log file and carries the
// fields needed for filtering without a full deserialization.
type indexEntry struct {
	Offset    int64     `json:"offset"`
	Length    int       `json:"length"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Scope     string    `json:"scope"`
}

// indexFile is the persisted shape of the sidecar index.
type indexFile struct {
	Entries map[int64]indexEntry `json:"entries"`
}

// Options configures opening a session store.
type Options struct {
	// SessionID names the session directory. Empty allocates a fresh,
	// collision-free id (new sessions only).
	SessionID string
	// Resume reopens an existing session for continued appends instead of
	// allocating a new directory.
	Resume bool
	// ReadOnly opens an existing session for inspection. Nothing is
	// written: metadata keeps its resume history, the log file is opened
	// without write access, and Append and UpdateDerived fail.
	ReadOnly bool
	// Meta seeds the session metadata file for new sessions.
	Meta SessionMeta
	// Logger receives structural log messages. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Store is the durable, append-only event log for one session. All commits
// flow through Append; Get and All read back committed history; the only
// post-commit mutation is UpdateDerived, which supersedes a record through
// the index while the log file itself remains append-only.
//
// The store is safe for concurrent use: the control loop is the only
// appender, but maintenance workers read and patch concurrently.
type Store struct {
	mu        sync.RWMutex
	dir       string
	sessionID string
	file      *os.File
	writeOff  int64
	index     map[int64]indexEntry
	seq       *core.Sequence
	meta      SessionMeta
	readOnly  bool
	logger    logging.Logger

	cache      []core.Event
	cacheValid bool
}

// Open opens (or creates) a session store under baseDir. A new session
// refuses to overwrite an existing directory; a resumed session requires
// one. A log whose index file is missing or unreadable is re-scanned end to
// end and the index rebuilt, never treated as empty.
func Open(baseDir string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	now := time.Now().UTC()
	sessionID := opts.SessionID
	if sessionID == "" {
		if opts.Resume {
			return nil, fmt.Errorf("eventlog: resume requires a session id")
		}
		if opts.ReadOnly {
			return nil, fmt.Errorf("eventlog: read-only open requires a session id")
		}
		sessionID = newSessionID(now)
	}
	dir := filepath.Join(baseDir, sessionID)

	s := &Store{
		dir:       dir,
		sessionID: sessionID,
		index:     make(map[int64]indexEntry),
		seq:       core.NewSequence(),
		readOnly:  opts.ReadOnly,
		logger:    opts.Logger,
	}

	if opts.ReadOnly {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSessionMissing, dir)
		}
		meta, err := readMeta(dir)
		if err != nil {
			return nil, err
		}
		s.meta = meta
	} else if opts.Resume {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSessionMissing, dir)
		}
		meta, err := readMeta(dir)
		if err != nil {
			return nil, err
		}
		meta.ResumedAt = append(meta.ResumedAt, now)
		s.meta = meta
		if err := writeMeta(dir, meta); err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(dir); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		meta := opts.Meta
		meta.SessionID = sessionID
		meta.CreatedAt = now
		s.meta = meta
		if err := writeMeta(dir, meta); err != nil {
			return nil, err
		}
	}

	if err := s.openLogFile(); err != nil {
		return nil, err
	}
	if err := s.loadOrRebuildIndex(); err != nil {
		s.file.Close()
		return nil, err
	}

	s.logger.Info("event log opened", "session_id", sessionID, "events", len(s.index))
	return s, nil
}

func (s *Store) openLogFile() error {
	path := filepath.Join(s.dir, logFileName)
	flags := os.O_CREATE | os.O_RDWR
	if s.readOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	off, err := file.Seek(0, 2)
	if err != nil {
		file.Close()
		return fmt.Errorf("seek event log: %w", err)
	}
	s.file = file
	s.writeOff = off
	return nil
}

// loadOrRebuildIndex reads the persisted index, falling back to a full log
// scan whenever the index is missing, unreadable, or stale relative to the
// log file.
func (s *Store) loadOrRebuildIndex() error {
	path := filepath.Join(s.dir, indexFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		var persisted indexFile
		if err := json.Unmarshal(data, &persisted); err == nil && persisted.Entries != nil {
			if s.indexCovers(persisted.Entries) {
				s.index = persisted.Entries
				s.syncSequence()
				return nil
			}
			s.logger.Warn("event log index stale, rebuilding", "session_id", s.sessionID)
		} else {
			s.logger.Warn("event log index unreadable, rebuilding", "session_id", s.sessionID)
		}
	} else if !os.IsNotExist(err) {
		s.logger.Warn("event log index unreadable, rebuilding", "session_id", s.sessionID, "error", err)
	}

	if err := s.rebuildIndex(); err != nil {
		return err
	}
	s.syncSequence()
	if s.readOnly {
		return nil
	}
	return s.persistIndexLocked()
}

// indexCovers sanity-checks a loaded index against the log file size: every
// entry must lie inside the file.
func (s *Store) indexCovers(entries map[int64]indexEntry) bool {
	for _, entry := range entries {
		if entry.Offset+int64(entry.Length) > s.writeOff {
			return false
		}
	}
	return true
}

// rebuildIndex scans the log end to end. Later records supersede earlier
// ones with the same id (derived-field patches), matching the incremental
// index exactly. Malformed lines are skipped loudly.
func (s *Store) rebuildIndex() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind event log: %w", err)
	}
	s.index = make(map[int64]indexEntry)

	reader := bufio.NewReader(s.file)
	var offset int64
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				var ev core.Event
				if jsonErr := json.Unmarshal(trimmed, &ev); jsonErr != nil || ev.EventID <= 0 {
					s.logger.Warn("skipping malformed log record", "session_id", s.sessionID, "offset", offset)
				} else {
					s.index[ev.EventID] = indexEntry{
						Offset:    offset,
						Length:    len(line),
						Type:      ev.Type,
						Timestamp: ev.Timestamp,
						Sender:    ev.Sender,
						Scope:     ev.Scope,
					}
				}
			}
			offset += int64(len(line))
		}
		if err != nil {
			break
		}
	}
	if _, err := s.file.Seek(s.writeOff, 0); err != nil {
		return fmt.Errorf("restore log position: %w", err)
	}
	s.logger.Info("event log index rebuilt", "session_id", s.sessionID, "events", len(s.index))
	return nil
}

func (s *Store) syncSequence() {
	var max int64
	for id := range s.index {
		if id > max {
			max = id
		}
	}
	s.seq.Sync(max)
}

func (s *Store) persistIndexLocked() error {
	data, err := json.Marshal(indexFile{Entries: s.index})
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, indexFileName), data)
}

// Append assigns the next event id, writes the record, and updates the
// index. It is the only path that turns an intention into a committed fact.
// References must point at already-committed ids; a forward or self
// reference fails the append.
func (s *Store) Append(ev core.Event) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return core.Event{}, ErrReadOnly
	}
	for _, ref := range ev.References {
		if _, ok := s.index[ref.EventID]; !ok {
			return core.Event{}, fmt.Errorf("%w: %d", ErrForwardReference, ref.EventID)
		}
	}

	ev.EventID = s.seq.Next()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Scope == "" {
		ev.Scope = core.ScopePublic
	}
	ev.References = core.NormalizeReferences(ev.References)

	if err := s.writeRecordLocked(ev); err != nil {
		return core.Event{}, err
	}
	if s.cacheValid {
		s.cache = append(s.cache, ev.Clone())
	}
	s.logger.Debug("event committed", "event_id", ev.EventID, "type", ev.Type, "sender", ev.Sender)
	return ev, nil
}

// writeRecordLocked serializes one event as a log line, updates the index
// entry, and persists the index. Caller holds the write lock.
func (s *Store) writeRecordLocked(ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", ev.EventID, err)
	}
	line := append(data, '\n')
	if _, err := s.file.WriteAt(line, s.writeOff); err != nil {
		return fmt.Errorf("append event %d: %w", ev.EventID, err)
	}
	s.index[ev.EventID] = indexEntry{
		Offset:    s.writeOff,
		Length:    len(line),
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		Sender:    ev.Sender,
		Scope:     ev.Scope,
	}
	s.writeOff += int64(len(line))
	return s.persistIndexLocked()
}

// Get reads a single event by id via the index, without scanning the log.
func (s *Store) Get(id int64) (core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id int64) (core.Event, error) {
	entry, ok := s.index[id]
	if !ok {
		return core.Event{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	buf := make([]byte, entry.Length)
	if _, err := s.file.ReadAt(buf, entry.Offset); err != nil {
		return core.Event{}, fmt.Errorf("read event %d: %w", id, err)
	}
	var ev core.Event
	if err := json.Unmarshal(bytes.TrimSpace(buf), &ev); err != nil {
		return core.Event{}, fmt.Errorf("decode event %d: %w", id, err)
	}
	return ev, nil
}

// All returns the full committed history in commit order. The result is
// cached after the first full read and kept current by Append and
// UpdateDerived; callers get a fresh copy each time.
func (s *Store) All() ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cacheValid {
		ids := make([]int64, 0, len(s.index))
		for id := range s.index {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		events := make([]core.Event, 0, len(ids))
		for _, id := range ids {
			ev, err := s.getLocked(id)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
		s.cache = events
		s.cacheValid = true
	}
	out := make([]core.Event, len(s.cache))
	for i, ev := range s.cache {
		out[i] = ev.Clone()
	}
	return out, nil
}

// Len returns the number of committed events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Has reports whether an event id has been committed.
func (s *Store) Has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// LastID returns the highest committed event id, or zero for an empty log.
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for id := range s.index {
		if id > max {
			max = id
		}
	}
	return max
}

// UpdateDerived patches the derived fields of a committed event: tags and
// reference weights. Nothing else on an event may change after commit. The
// patched record is appended and the index repointed, so the log file stays
// append-only while Get serves the newest version. Reference targets may be
// reweighted but not added or removed.
func (s *Store) UpdateDerived(id int64, tags []string, refs []core.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}
	ev, err := s.getLocked(id)
	if err != nil {
		return err
	}

	if refs != nil {
		if len(refs) != len(ev.References) {
			return fmt.Errorf("eventlog: derived update may not change reference targets of event %d", id)
		}
		for i, ref := range refs {
			if ref.EventID != ev.References[i].EventID {
				return fmt.Errorf("eventlog: derived update may not change reference targets of event %d", id)
			}
		}
		ev.References = core.NormalizeReferences(refs)
	}
	if tags != nil {
		ev.Tags = tags
	}

	if err := s.writeRecordLocked(ev); err != nil {
		return err
	}
	if s.cacheValid {
		for i := range s.cache {
			if s.cache[i].EventID == id {
				s.cache[i] = ev.Clone()
				break
			}
		}
	}
	return nil
}

// Meta returns the session metadata as written at open time.
func (s *Store) Meta() SessionMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// SessionID returns the session identifier.
func (s *Store) SessionID() string { return s.sessionID }

// Dir returns the session directory; session memory keeps its derived files
// (tag pool, team board, task tables) alongside the log.
func (s *Store) Dir() string { return s.dir }

// Close flushes the index and releases the log file handle. A read-only
// store only releases the handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.readOnly {
		if err := s.persistIndexLocked(); err != nil {
			s.file.Close()
			return err
		}
	}
	return s.file.Close()
}
