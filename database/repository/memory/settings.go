package memory

import (
	"context"
	"sync"
)

// SettingsRepo serves raw settings from a map. Err, when set, is returned instead.
type SettingsRepo struct {
	mu     sync.RWMutex
	values map[string]string
	Err    error
}

func NewSettingsRepo(values map[string]string) *SettingsRepo {
	if values == nil {
		values = map[string]string{}
	}
	return &SettingsRepo{values: values}
}

func (r *SettingsRepo) GetValues(_ context.Context, keys ...string) (map[string]string, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := r.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}
