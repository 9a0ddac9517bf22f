package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/apibridge/internal/metrics"
	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/rs/zerolog/log"
)

const documentVersion = "1.0.0"

// Info is the descriptive header of the store document.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

func defaultInfo() Info {
	return Info{
		Title:       "apibridge API store",
		Description: "API definitions exposed as tools",
		Version:     documentVersion,
	}
}

// document is the on-disk JSON shape.
type document struct {
	Version   string                   `json:"version"`
	Info      Info                     `json:"info"`
	APIs      []*descriptor.Descriptor `json:"apis"`
	Variables map[string]string        `json:"variables,omitempty"`
}

// snapshot is an immutable view of the store. Descriptors inside a published
// snapshot are never mutated; a mutation clones what it changes.
type snapshot struct {
	info      Info
	apis      []*descriptor.Descriptor
	variables map[string]string
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		info:      s.info,
		apis:      append([]*descriptor.Descriptor(nil), s.apis...),
		variables: make(map[string]string, len(s.variables)),
	}
	for k, v := range s.variables {
		next.variables[k] = v
	}
	return next
}

func (s *snapshot) indexOf(idOrName string) int {
	for i, d := range s.apis {
		if d.ID == idOrName {
			return i
		}
	}
	for i, d := range s.apis {
		if d.Name == idOrName {
			return i
		}
	}
	return -1
}

func (s *snapshot) document() document {
	return document{
		Version:   documentVersion,
		Info:      s.info,
		APIs:      s.apis,
		Variables: s.variables,
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status descriptor.Status
	Tag    string
}

func (f Filter) match(d *descriptor.Descriptor) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Tag != "" && !d.HasTag(f.Tag) {
		return false
	}
	return true
}

// Store persists API descriptors in a single JSON document. Mutations are
// serialized by one writer lock and written atomically before they become
// visible; reads never block on disk I/O and always see a whole snapshot.
type Store struct {
	path     string
	reserved map[string]bool
	metrics  *metrics.Metrics
	now      func() time.Time

	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *snapshot
}

// Option configures a Store.
type Option func(*Store)

// WithReservedNames blocks descriptors from taking these names.
func WithReservedNames(names ...string) Option {
	return func(s *Store) {
		for _, n := range names {
			s.reserved[n] = true
		}
	}
}

// WithMetrics records mutation outcomes and descriptor counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store bound to path without touching the disk.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		reserved: make(map[string]bool),
		now:      func() time.Time { return time.Now().UTC() },
		state: &snapshot{
			info:      defaultInfo(),
			apis:      []*descriptor.Descriptor{},
			variables: map[string]string{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads path. A missing file yields an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(path, opts...)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) publish(next *snapshot) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if s.metrics != nil {
		enabled := 0
		for _, d := range next.apis {
			if d.Enabled() {
				enabled++
			}
		}
		s.metrics.SetDescriptorCounts(enabled, len(next.apis)-enabled)
	}
}

// Load replaces the in-memory state with the file contents.
func (s *Store) Load() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", s.path).Msg("Store file does not exist, starting with empty store")
		s.publish(s.current().clone())
		return nil
	}
	if err != nil {
		return &Error{Kind: KindIOFailure, Msg: "failed to read store file", Err: err}
	}

	snap, err := s.decode(data)
	if err != nil {
		return err
	}
	s.publish(snap)

	log.Info().
		Str("path", s.path).
		Int("apis", len(snap.apis)).
		Int("variables", len(snap.variables)).
		Msg("Store loaded")
	return nil
}

func (s *Store) decode(data []byte) (*snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &Error{Kind: KindCorrupt, Msg: "store file is empty"}
	}

	var doc document
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.APIs); err != nil {
			return nil, &Error{Kind: KindCorrupt, Msg: "failed to parse store file", Err: err}
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &Error{Kind: KindCorrupt, Msg: "failed to parse store file", Err: err}
	}

	snap := &snapshot{
		info:      doc.Info,
		apis:      make([]*descriptor.Descriptor, 0, len(doc.APIs)),
		variables: doc.Variables,
	}
	if snap.info.Title == "" {
		snap.info = defaultInfo()
	}
	if snap.variables == nil {
		snap.variables = map[string]string{}
	}

	ids := make(map[string]bool, len(doc.APIs))
	names := make(map[string]bool, len(doc.APIs))
	for i, d := range doc.APIs {
		if d == nil {
			return nil, &Error{Kind: KindCorrupt, Msg: fmt.Sprintf("apis[%d] is null", i)}
		}
		d.Normalize()
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if err := d.Validate(); err != nil {
			return nil, &Error{Kind: KindCorrupt, Key: d.Name, Msg: fmt.Sprintf("apis[%d] is invalid", i), Err: err}
		}
		if ids[d.ID] {
			return nil, &Error{Kind: KindCorrupt, Key: d.ID, Msg: fmt.Sprintf("duplicate id '%s'", d.ID)}
		}
		if names[d.Name] || s.reserved[d.Name] {
			return nil, &Error{Kind: KindCorrupt, Key: d.Name, Msg: fmt.Sprintf("duplicate or reserved name '%s'", d.Name)}
		}
		ids[d.ID] = true
		names[d.Name] = true
		snap.apis = append(snap.apis, d)
	}
	return snap, nil
}

// Save persists the current state.
func (s *Store) Save() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(s.current())
}

// persist writes snap to a temp file and renames it over the store file, so
// a crash mid-write leaves the previous document intact.
func (s *Store) persist(snap *snapshot) error {
	start := time.Now()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &Error{Kind: KindIOFailure, Msg: "failed to create store directory", Err: err}
	}

	data, err := json.MarshalIndent(snap.document(), "", "  ")
	if err != nil {
		return &Error{Kind: KindIOFailure, Msg: "failed to marshal store", Err: err}
	}

	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return &Error{Kind: KindIOFailure, Msg: "failed to create temp file", Err: err}
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return &Error{Kind: KindIOFailure, Msg: "failed to write temp file", Err: err}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return &Error{Kind: KindIOFailure, Msg: "failed to sync temp file", Err: err}
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return &Error{Kind: KindIOFailure, Msg: "failed to close temp file", Err: err}
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return &Error{Kind: KindIOFailure, Msg: "failed to replace store file", Err: err}
	}

	if s.metrics != nil {
		s.metrics.ObserveStorePersist(time.Since(start))
	}
	log.Debug().
		Str("path", s.path).
		Int("apis", len(snap.apis)).
		Dur("duration", time.Since(start)).
		Msg("Store saved")
	return nil
}

// mutate runs fn against a private copy of the state, persists the copy and
// only then publishes it. A failed write leaves memory and disk unchanged.
func (s *Store) mutate(op string, fn func(next *snapshot) (*descriptor.Descriptor, error)) (*descriptor.Descriptor, error) {
	start := time.Now()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.current().clone()
	result, err := fn(next)
	if err == nil {
		err = s.persist(next)
	}
	if err == nil {
		s.publish(next)
	}

	if s.metrics != nil {
		s.metrics.RecordStoreMutation(op, err == nil, time.Since(start))
	}
	if err != nil {
		log.Debug().Str("op", op).Err(err).Msg("Store mutation rejected")
		return nil, err
	}
	return result.Clone(), nil
}

func (s *Store) checkName(snap *snapshot, name string, self int) error {
	if s.reserved[name] {
		return conflict(name, fmt.Sprintf("name '%s' is reserved by a built-in tool", name))
	}
	for i, d := range snap.apis {
		if i != self && d.Name == name {
			return conflict(name, fmt.Sprintf("API with name '%s' already exists", name))
		}
	}
	return nil
}

// Add stores a new descriptor. An empty ID is assigned; status defaults to
// enabled.
func (s *Store) Add(d descriptor.Descriptor) (*descriptor.Descriptor, error) {
	return s.mutate("add", func(next *snapshot) (*descriptor.Descriptor, error) {
		c := d.Clone()
		c.Normalize()
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if err := s.checkName(next, c.Name, -1); err != nil {
			return nil, err
		}
		for _, existing := range next.apis {
			if existing.ID == c.ID {
				return nil, conflict(c.ID, fmt.Sprintf("API with id '%s' already exists", c.ID))
			}
		}

		now := s.now()
		c.CreatedAt = now
		c.UpdatedAt = now
		next.apis = append(next.apis, c)

		log.Info().Str("id", c.ID).Str("name", c.Name).Msg("API added")
		return c, nil
	})
}

// Update merges patch into the descriptor matching idOrName. Concurrent
// updates of the same descriptor are applied in lock order; the last one wins.
func (s *Store) Update(idOrName string, patch descriptor.Patch) (*descriptor.Descriptor, error) {
	return s.mutate("update", func(next *snapshot) (*descriptor.Descriptor, error) {
		i := next.indexOf(idOrName)
		if i < 0 {
			return nil, notFound(idOrName)
		}

		c := next.apis[i].Clone()
		patch.ApplyTo(c)
		c.Normalize()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if err := s.checkName(next, c.Name, i); err != nil {
			return nil, err
		}

		c.UpdatedAt = s.now()
		next.apis[i] = c

		log.Info().Str("id", c.ID).Str("name", c.Name).Msg("API updated")
		return c, nil
	})
}

// Delete removes the descriptor matching idOrName and returns it.
func (s *Store) Delete(idOrName string) (*descriptor.Descriptor, error) {
	return s.mutate("delete", func(next *snapshot) (*descriptor.Descriptor, error) {
		i := next.indexOf(idOrName)
		if i < 0 {
			return nil, notFound(idOrName)
		}

		removed := next.apis[i]
		next.apis = append(next.apis[:i:i], next.apis[i+1:]...)

		log.Info().Str("id", removed.ID).Str("name", removed.Name).Msg("API deleted")
		return removed, nil
	})
}

// SetStatus enables or disables the descriptor matching idOrName.
func (s *Store) SetStatus(idOrName string, status descriptor.Status) (*descriptor.Descriptor, error) {
	if !status.Valid() {
		return nil, &descriptor.ValidationError{Kind: descriptor.InvalidValue, Field: "status", Message: "must be enabled or disabled"}
	}
	return s.mutate("set_status", func(next *snapshot) (*descriptor.Descriptor, error) {
		i := next.indexOf(idOrName)
		if i < 0 {
			return nil, notFound(idOrName)
		}

		c := next.apis[i].Clone()
		c.Status = status
		c.UpdatedAt = s.now()
		next.apis[i] = c

		log.Info().Str("id", c.ID).Str("name", c.Name).Str("status", string(status)).Msg("API status changed")
		return c, nil
	})
}

// Find returns the descriptor whose ID matches idOrName, falling back to a
// name match.
func (s *Store) Find(idOrName string) (*descriptor.Descriptor, error) {
	snap := s.current()
	i := snap.indexOf(idOrName)
	if i < 0 {
		return nil, notFound(idOrName)
	}
	return snap.apis[i].Clone(), nil
}

// FindByName returns the descriptor with exactly this name.
func (s *Store) FindByName(name string) (*descriptor.Descriptor, error) {
	for _, d := range s.current().apis {
		if d.Name == name {
			return d.Clone(), nil
		}
	}
	return nil, notFound(name)
}

// List returns descriptors matching filter in insertion order.
func (s *Store) List(filter Filter) []*descriptor.Descriptor {
	snap := s.current()
	out := make([]*descriptor.Descriptor, 0, len(snap.apis))
	for _, d := range snap.apis {
		if filter.match(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// Enabled returns every enabled descriptor.
func (s *Store) Enabled() []*descriptor.Descriptor {
	return s.List(Filter{Status: descriptor.StatusEnabled})
}

// Count returns the number of stored descriptors.
func (s *Store) Count() int {
	return len(s.current().apis)
}

var variableKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]{0,63}$`)

// Variables returns a copy of the stored variables.
func (s *Store) Variables() map[string]string {
	snap := s.current()
	out := make(map[string]string, len(snap.variables))
	for k, v := range snap.variables {
		out[k] = v
	}
	return out
}

// VariableNames returns the variable keys in sorted order.
func (s *Store) VariableNames() []string {
	snap := s.current()
	names := make([]string, 0, len(snap.variables))
	for k := range snap.variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetVariable stores key=value for {{key}} expansion.
func (s *Store) SetVariable(key, value string) error {
	if !variableKeyPattern.MatchString(key) {
		return &descriptor.ValidationError{Kind: descriptor.InvalidValue, Field: "key", Message: "must match ^[A-Za-z_][A-Za-z0-9_.-]{0,63}$"}
	}
	_, err := s.mutate("set_variable", func(next *snapshot) (*descriptor.Descriptor, error) {
		next.variables[key] = value
		log.Info().Str("key", key).Msg("Variable set")
		return nil, nil
	})
	return err
}

// DeleteVariable removes key. It reports whether the key existed; nothing is
// written when it did not.
func (s *Store) DeleteVariable(key string) (bool, error) {
	if _, ok := s.current().variables[key]; !ok {
		return false, nil
	}
	_, err := s.mutate("delete_variable", func(next *snapshot) (*descriptor.Descriptor, error) {
		if _, ok := next.variables[key]; !ok {
			return nil, notFound(key)
		}
		delete(next.variables, key)
		log.Info().Str("key", key).Msg("Variable deleted")
		return nil, nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
