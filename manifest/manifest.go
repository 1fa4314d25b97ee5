// Package manifest handles lisp.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the manifest file.
const FileName = "lisp.toml"

// Manifest represents a lisp.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	Repl    Repl    `toml:"repl"`

	// Dir is the directory containing the lisp.toml file (set at load time).
	Dir string `toml:"-"`

	// Unknown lists keys present in the file that no field consumed.
	Unknown []string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs    []string `toml:"dirs"`
	Entry   string   `toml:"entry"`
	Prelude []string `toml:"prelude"`
}

// Runtime configures evaluation.
type Runtime struct {
	Compile   *bool `toml:"compile"`
	StackSize int   `toml:"stack-size"`
	Disasm    bool  `toml:"disasm"`
}

// Log configures logging.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Repl configures the interactive console.
type Repl struct {
	History string `toml:"history"`
	Prompt  string `toml:"prompt"`
}

// Default returns the configuration used when no lisp.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Runtime.Compile == nil {
		compile := true
		m.Runtime.Compile = &compile
	}
	if m.Runtime.StackSize <= 0 {
		m.Runtime.StackSize = 1024
	}
	if m.Repl.History == "" {
		m.Repl.History = ".lisp_history"
	}
	if m.Repl.Prompt == "" {
		m.Repl.Prompt = "> "
	}
}

// Load parses a lisp.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		m.Unknown = append(m.Unknown, key.String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a lisp.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// CompileEnabled reports whether forms are compiled rather than interpreted.
func (m *Manifest) CompileEnabled() bool {
	return m.Runtime.Compile == nil || *m.Runtime.Compile
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// PreludePaths returns the prelude files in load order, relative to Dir.
func (m *Manifest) PreludePaths() []string {
	var paths []string
	for _, p := range m.Source.Prelude {
		paths = append(paths, m.resolve(p))
	}
	return paths
}

// EntryPath returns the path of the entry file, or "" if none is set.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	for _, d := range m.SourceDirPaths() {
		path := filepath.Join(d, m.Source.Entry)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return m.resolve(m.Source.Entry)
}

// HistoryPath returns the path of the REPL history file.
func (m *Manifest) HistoryPath() string {
	return m.resolve(m.Repl.History)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
