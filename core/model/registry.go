package model

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Factory は構築設定 (JSON) から未学習のモデルを作ります。
type Factory func(config []byte) (Trainable, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register はモデルの種類名に Factory を登録します。
// database/sql のドライバ登録と同様に、同じ名前の二重登録や nil の
// Factory は panic します。
func Register(typeName string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("model: Register factory is nil")
	}
	if _, dup := factories[typeName]; dup {
		panic("model: Register called twice for type " + typeName)
	}
	factories[typeName] = f
}

// Types は登録済みのモデル種類名をソートして返します。
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromSnapshot は Snapshot の構築設定からモデルを作り、パラメータを復元します。
func FromSnapshot(s Snapshot) (Trainable, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	registryMu.RLock()
	f, ok := factories[s.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewValueError("FromSnapshot", "unknown model type "+s.Type)
	}
	m, err := f(s.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s from snapshot config", s.Type)
	}
	if err := m.Restore(s); err != nil {
		return nil, err
	}
	return m, nil
}
