package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/newthinker/ladder/internal/core"
)

const runsPrefix = "runs"

// ResultStore persists backtest run bundles as JSON documents under
// runs/<SYMBOL>/<run id>.json.
type ResultStore struct {
	store Storage
}

// NewResultStore creates a result store on top of store
func NewResultStore(store Storage) *ResultStore {
	return &ResultStore{store: store}
}

// Save encodes run and stores it under a new run ID, which it returns
func (r *ResultStore) Save(ctx context.Context, symbol string, run any) (string, error) {
	if symbol == "" {
		return "", core.WrapError(core.ErrConfigMissing, errors.New("symbol required to archive a run"))
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run: %w", err)
	}

	id := uuid.NewString()
	if err := r.store.Write(ctx, runPath(symbol, id), data); err != nil {
		return "", err
	}
	return id, nil
}

// Load decodes the run with the given ID into out
func (r *ResultStore) Load(ctx context.Context, symbol, id string, out any) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("run id %q: %w", id, err))
	}

	data, err := r.store.Read(ctx, runPath(symbol, id))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding run %s: %w", id, err))
	}
	return nil
}

// List returns the run IDs stored for symbol
func (r *ResultStore) List(ctx context.Context, symbol string) ([]string, error) {
	paths, err := r.store.List(ctx, path.Join(runsPrefix, strings.ToUpper(symbol)))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		base := strings.TrimSuffix(path.Base(p), ".json")
		if _, err := uuid.Parse(base); err == nil {
			ids = append(ids, base)
		}
	}
	return ids, nil
}

func runPath(symbol, id string) string {
	return path.Join(runsPrefix, strings.ToUpper(symbol), id+".json")
}
