package recorder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/magiconair/properties"

	"tvrec/internal/device"
	"tvrec/internal/fileutil"
	"tvrec/internal/services"
)

// Store persists recorder configurations as "<source>.<family>.properties"
// files in one directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir is the directory holding configuration and scan files.
func (s *Store) Dir() string { return s.dir }

// Path returns the configuration file path for source.
func (s *Store) Path(source string, family device.Family) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%s.properties", source, family))
}

// Exists reports whether a configuration file is present.
func (s *Store) Exists(source string, family device.Family) bool {
	return fileutil.Exists(s.Path(source, family))
}

// Load reads the configuration for source. A missing file is reported with
// services.ErrNotFound.
func (s *Store) Load(source string, family device.Family) (*Configuration, error) {
	path := s.Path(source, family)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "recorder-config", "load", path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "recorder-config", "load", path, err)
	}
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "recorder-config", "parse", path, err)
	}
	cfg := NewConfiguration(source, family)
	for _, key := range props.Keys() {
		value, _ := props.Get(key)
		cfg.Set(key, value)
	}
	return cfg, nil
}

// Save writes cfg atomically while holding a file lock, so concurrent
// registrations of the same device cannot interleave.
func (s *Store) Save(cfg *Configuration) error {
	if cfg == nil {
		return errors.New("recorder-config: nil configuration")
	}
	path := s.Path(cfg.Source, cfg.Family)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "recorder-config", "save", "create directory", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return services.Wrap(services.ErrTransient, "recorder-config", "save", "lock", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	if err := fileutil.WriteFileAtomic(path, []byte(cfg.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "recorder-config", "save", path, err)
	}
	return nil
}

// LoadOrCreate loads the configuration for source, building and saving it
// with build when no file exists yet. created reports whether build ran.
func (s *Store) LoadOrCreate(source string, family device.Family, build func() (*Configuration, error)) (cfg *Configuration, created bool, err error) {
	if s.Exists(source, family) {
		cfg, err = s.Load(source, family)
		return cfg, false, err
	}
	cfg, err = build()
	if err != nil {
		return nil, false, err
	}
	if err := s.Save(cfg); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}
