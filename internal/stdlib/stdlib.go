// Package stdlib provides the standard library modules available to every
// program through use.std::<path>.
package stdlib

import (
	"embed"
	"io/fs"
	"slices"
	"strings"
	"sync"
)

//go:embed asm
var files embed.FS

// Namespace is the root of every standard library module path.
const Namespace = "std"

// Library is a read-only set of modules keyed by path ("std::math::felt").
// It implements assembly.ModuleProvider.
type Library struct {
	modules map[string]string
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the embedded standard library.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := load(files, "asm")
		if err != nil {
			// The embedded tree is fixed at build time.
			panic(err)
		}
		defaultLib = lib
	})
	return defaultLib
}

// load reads every .masm file under root. asm/math/felt.masm becomes
// std::math::felt.
func load(fsys fs.FS, root string) (*Library, error) {
	lib := &Library{modules: make(map[string]string)}
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".masm") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		rel := strings.TrimSuffix(strings.TrimPrefix(path, root+"/"), ".masm")
		lib.modules[Namespace+"::"+strings.ReplaceAll(rel, "/", "::")] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// Module implements assembly.ModuleProvider.
func (l *Library) Module(path string) (string, bool) {
	src, ok := l.modules[path]
	return src, ok
}

// Paths returns the module paths in sorted order.
func (l *Library) Paths() []string {
	paths := make([]string, 0, len(l.modules))
	for p := range l.modules {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}
