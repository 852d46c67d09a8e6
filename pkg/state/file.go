package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	opts "github.com/goliatone/go-optset"
)

// FileConfig configures a FileProvider. An empty Path means the home
// directory and a relative Path is resolved against it. An empty Filename
// means `<set name><extension>`; any directory part of Filename is dropped and
// a missing extension is appended.
type FileConfig struct {
	opts.PersistenceConfig
	Path         string
	Filename     string
	BackupOnSave bool
}

// FileOption configures a FileProvider.
type FileOption func(*FileProvider)

// WithHomeDir replaces the home directory used for path normalization.
func WithHomeDir(dir string) FileOption {
	return func(p *FileProvider) {
		p.homeDir = func() (string, error) { return dir, nil }
	}
}

// WithClock replaces the clock used for save headers.
func WithClock(now func() time.Time) FileOption {
	return func(p *FileProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// FileProvider stores one set per file. It implements opts.StreamProvider.
type FileProvider struct {
	mu      sync.Mutex
	codec   codec
	set     string
	config  FileConfig
	file    string
	homeDir func() (string, error)
	now     func() time.Time
}

// NewFileProvider returns a provider for the `key=value` properties format.
func NewFileProvider(options ...FileOption) *FileProvider {
	return newFileProvider(propertiesCodec{}, options)
}

// NewJSONProvider returns a provider storing a JSON object of option texts.
func NewJSONProvider(options ...FileOption) *FileProvider {
	return newFileProvider(jsonCodec{}, options)
}

func newFileProvider(c codec, options []FileOption) *FileProvider {
	p := &FileProvider{
		codec:   c,
		homeDir: os.UserHomeDir,
		now:     time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *FileProvider) Init(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set = name
	p.file = ""
}

// Configure accepts FileConfig, opts.PersistenceConfig or pointers to them.
// The base configuration restores the default location without backups.
func (p *FileProvider) Configure(config any) error {
	var cfg FileConfig
	switch c := config.(type) {
	case nil:
	case opts.PersistenceConfig:
		cfg.PersistenceConfig = c
	case *opts.PersistenceConfig:
		if c != nil {
			cfg.PersistenceConfig = *c
		}
	case FileConfig:
		cfg = c
	case *FileConfig:
		if c != nil {
			cfg = *c
		}
	default:
		return fmt.Errorf("%w: %s provider accepts PersistenceConfig or FileConfig, got %T", opts.ErrConfiguration, p.codec.name(), config)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Name != "" {
		p.set = cfg.Name
	}
	file, err := p.resolve(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", opts.ErrConfiguration, err)
	}
	p.config = cfg
	p.file = file
	return nil
}

// File returns the normalized location of the backing file.
func (p *FileProvider) File() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location()
}

// Config returns the last applied configuration.
func (p *FileProvider) Config() FileConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

func (p *FileProvider) Name() string { return p.codec.name() }

func (p *FileProvider) location() (string, error) {
	if p.file != "" {
		return p.file, nil
	}
	file, err := p.resolve(p.config)
	if err != nil {
		return "", err
	}
	p.file = file
	return file, nil
}

func (p *FileProvider) resolve(cfg FileConfig) (string, error) {
	home, err := p.homeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return ResolvePath(home, cfg.Path, cfg.Filename, p.set, p.codec.extension())
}

// ResolvePath applies the FileConfig normalization rules.
func ResolvePath(home, path, filename, set, extension string) (string, error) {
	if filename != "" {
		filename = filepath.Base(filename)
		if filename == "." || filename == string(filepath.Separator) {
			filename = ""
		}
	}
	if filename == "" {
		if set == "" {
			return "", fmt.Errorf("no filename and no set name")
		}
		filename = set + extension
	}
	if filepath.Ext(filename) == "" {
		filename += extension
	}
	if path == "" {
		path = home
	}
	if !filepath.IsAbs(path) {
		if home == "" {
			return "", fmt.Errorf("relative path %q needs a home directory", path)
		}
		path = filepath.Join(home, path)
	}
	return filepath.Join(path, filename), nil
}

// Load reads the backing file. A missing file leaves every option untouched
// and reports false.
func (p *FileProvider) Load(ctx context.Context, cells []opts.Cell, suppressConversionErrors bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, err := p.location()
	if err != nil {
		return false, &opts.StorageError{Op: "load", Path: p.set, Err: err}
	}
	handle, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &opts.StorageError{Op: "load", Path: file, Err: err}
	}
	defer handle.Close()
	if err := p.loadStream(handle, file, cells, suppressConversionErrors); err != nil {
		return true, err
	}
	return true, nil
}

// Save writes the backing file, copying an existing file to `<file>.bak`
// first when BackupOnSave is set. Missing parent directories are created.
func (p *FileProvider) Save(ctx context.Context, cells []opts.Cell, nonDefaultOnly bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, err := p.location()
	if err != nil {
		return &opts.StorageError{Op: "save", Path: p.set, Err: err}
	}
	entries, err := opts.CollectEntries(cells, nonDefaultOnly)
	if err != nil {
		return err
	}

	info, statErr := os.Stat(file)
	switch {
	case statErr == nil && info.Mode().IsRegular():
		if p.config.BackupOnSave {
			if err := copyFile(file, file+".bak"); err != nil {
				return &opts.StorageError{Op: "backup", Path: file, Err: err}
			}
		}
	case statErr == nil && info.IsDir():
		return &opts.StorageError{Op: "save", Path: file, Err: fmt.Errorf("target is a directory")}
	default:
		if err := ensureDir(filepath.Dir(file)); err != nil {
			return &opts.StorageError{Op: "save", Path: filepath.Dir(file), Err: err}
		}
	}

	if err := writeFileAtomic(file, func(w io.Writer) error {
		return p.codec.encode(w, p.set, p.now(), entries)
	}); err != nil {
		return &opts.StorageError{Op: "save", Path: file, Err: err}
	}
	return nil
}

// LoadStream reads options from r in the provider's format.
func (p *FileProvider) LoadStream(ctx context.Context, r io.Reader, cells []opts.Cell, suppressConversionErrors bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadStream(r, "stream", cells, suppressConversionErrors)
}

// SaveStream writes options to w in the provider's format.
func (p *FileProvider) SaveStream(ctx context.Context, w io.Writer, cells []opts.Cell, nonDefaultOnly bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries, err := opts.CollectEntries(cells, nonDefaultOnly)
	if err != nil {
		return err
	}
	if err := p.codec.encode(w, p.set, p.now(), entries); err != nil {
		return &opts.StorageError{Op: "save", Path: "stream", Err: err}
	}
	return nil
}

func (p *FileProvider) loadStream(r io.Reader, location string, cells []opts.Cell, suppress bool) error {
	staged, err := p.codec.decode(r)
	if err != nil {
		return &opts.StorageError{Op: "load", Path: location, Err: err}
	}
	return opts.ApplyStaged(cells, staged, suppress)
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists but is not a directory", dir)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeFileAtomic writes through a temporary sibling renamed over file.
func writeFileAtomic(file string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, file)
}
