// Package statestore persists pipeline progress as a single JSON checkpoint
// under the output directory. A corrupt checkpoint is treated as absent so a
// bad file can never block a resumed run.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// stateFileName is the well-known checkpoint location relative to the
// pipeline's working directory.
const stateFileName = "state.json"

// Store reads and writes the PhaseState checkpoint.
type Store struct {
	path string
	log  zerolog.Logger
}

// New creates a Store rooted at workDir (typically <output>/.forge).
func New(workDir string, log zerolog.Logger) *Store {
	return &Store{
		path: filepath.Join(workDir, stateFileName),
		log:  log.With().Str("component", "statestore").Logger(),
	}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the state to the checkpoint file, creating parent
// directories as needed. The write is atomic via rename.
func (s *Store) Save(state *PhaseState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return renameio.WriteFile(s.path, data, 0o644)
}

// Load reads a prior checkpoint. A missing or unparseable file both return
// (nil, nil): the caller proceeds as if no prior state existed.
func (s *Store) Load() (*PhaseState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state PhaseState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("discarding corrupt checkpoint")
		return nil, nil
	}

	if state.Results == nil {
		state.Results = make(map[int]any)
	}
	if state.Errors == nil {
		state.Errors = make(map[int]string)
	}
	return &state, nil
}
