// Package policy implements the Policy Store: the in-memory list of
// policies loaded from config/policy.txt, API-driven new/edit/delete
// mutation via command-queue commands, atomic file rewrite, and
// device-rename handling that dispatches on policy type rather than a
// fixed grammar position.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hsdnet/controller/internal/config"
	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/util"
)

// Topic is the bus topic the Store publishes its policy list on, after
// load and after every mutation.
const Topic = "Policies"

// DeviceRenamedTopic is the bus topic the Store subscribes to for
// device-rename handling; the event payload is DeviceRenamed.
const DeviceRenamedTopic = "PolicyDeviceAPI"

// DeviceRenamed is published by whichever component handles a
// "classic-device edit"/"sdn-device edit" command, and consumed here to
// rewrite any policy referencing the old device name.
type DeviceRenamed struct {
	Old string
	New string
}

// Command is one API-driven policy mutation drained from the command
// queue: "new" uses Line, "delete" uses Line, "edit" replaces the
// policy encoding OldLine with Line.
type Command struct {
	Action  string // "new" | "edit" | "delete"
	Line    string
	OldLine string
}

// Publisher is the narrow slice of *bus.Bus the Store needs.
type Publisher interface {
	Publish(topic string, event any)
}

// Store owns the in-memory policy list and its on-disk file.
type Store struct {
	mu   sync.Mutex
	path string
	bus  Publisher

	policies []model.Policy
}

// NewStore builds a Store backed by path, publishing mutations to bus.
func NewStore(path string, bus Publisher) *Store {
	return &Store{path: path, bus: bus}
}

// Load reads the policy file, logging and skipping any invalid lines,
// then publishes the initial Policies snapshot. Call once at startup
// before serving commands.
func (s *Store) Load() error {
	policies, lineErrs, err := config.ParsePolicyFile(s.path)
	if err != nil {
		return err
	}
	for _, le := range lineErrs {
		util.WithComponent("policy").Errorf("%v", le)
	}

	s.mu.Lock()
	s.policies = policies
	s.mu.Unlock()

	s.publish()
	return nil
}

// Policies returns a copy of the current policy list.
func (s *Store) Policies() []model.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

// Apply runs one command-queue mutation against the in-memory list,
// rewrites the file atomically, and republishes on success.
func (s *Store) Apply(cmd Command) error {
	switch cmd.Action {
	case "new":
		p, err := config.ParsePolicyLine(cmd.Line)
		if err != nil {
			return util.NewValidationError(cmd.Line, err.Error())
		}
		s.mu.Lock()
		s.policies = append(s.policies, p)
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		return s.commit(snapshot)

	case "delete":
		s.mu.Lock()
		idx := s.indexOfLocked(cmd.Line)
		if idx < 0 {
			s.mu.Unlock()
			return util.NewValidationError(cmd.Line, "no such policy")
		}
		s.policies = append(s.policies[:idx], s.policies[idx+1:]...)
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		return s.commit(snapshot)

	case "edit":
		p, err := config.ParsePolicyLine(cmd.Line)
		if err != nil {
			return util.NewValidationError(cmd.Line, err.Error())
		}
		s.mu.Lock()
		idx := s.indexOfLocked(cmd.OldLine)
		if idx < 0 {
			s.mu.Unlock()
			return util.NewValidationError(cmd.OldLine, "no such policy")
		}
		s.policies[idx] = p
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		return s.commit(snapshot)

	default:
		return util.NewValidationError(cmd.Action, "unknown policy command")
	}
}

// OnDeviceRenamed rewrites every policy whose device field equals
// old to new, dispatching on policy type via model.WithDevice so
// block/route-f policies (which put the device in a non-second-word
// slot) rewrite correctly, then rewrites the file and republishes.
func (s *Store) OnDeviceRenamed(old, new string) error {
	s.mu.Lock()
	changed := false
	for i, p := range s.policies {
		if device, ok := model.DeviceField(p); ok && device == old {
			s.policies[i] = model.WithDevice(p, new)
			changed = true
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if !changed {
		return nil
	}
	return s.commit(snapshot)
}

func (s *Store) indexOfLocked(line string) int {
	for i, p := range s.policies {
		if p.Encode() == line {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []model.Policy {
	out := make([]model.Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

func (s *Store) commit(snapshot []model.Policy) error {
	if err := config.WritePolicyFile(s.path, snapshot); err != nil {
		return fmt.Errorf("policy: rewriting %s: %w", s.path, err)
	}
	if s.bus != nil {
		s.bus.Publish(Topic, snapshot)
	}
	return nil
}

func (s *Store) publish() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(Topic, s.Policies())
}

// ParseCommand builds a Command from a PolicyAPI event's words (the
// tokens of a "policy ..." queue command after the leading "policy"
// token):
//
//	new <policy-line>
//	edit <new-line> old <old-line>
//	delete <policy-line>
func ParseCommand(words []string) (Command, error) {
	if len(words) == 0 {
		return Command{}, fmt.Errorf("policy command: empty")
	}
	action := words[0]
	rest := words[1:]
	switch action {
	case "new", "delete":
		if len(rest) == 0 {
			return Command{}, fmt.Errorf("policy %s: missing policy line", action)
		}
		return Command{Action: action, Line: strings.Join(rest, " ")}, nil
	case "edit":
		idx := indexOfWord(rest, "old")
		if idx < 0 {
			return Command{}, fmt.Errorf("policy edit: missing \"old\" separator")
		}
		newLine := strings.Join(rest[:idx], " ")
		oldLine := strings.Join(rest[idx+1:], " ")
		if newLine == "" || oldLine == "" {
			return Command{}, fmt.Errorf("policy edit: both new and old lines are required")
		}
		return Command{Action: action, Line: newLine, OldLine: oldLine}, nil
	default:
		return Command{}, fmt.Errorf("policy command: unknown action %q", action)
	}
}

func indexOfWord(words []string, target string) int {
	for i, w := range words {
		if w == target {
			return i
		}
	}
	return -1
}
