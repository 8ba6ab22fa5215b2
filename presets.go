package saugo

import (
	"embed"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed presets/*
var presetFS embed.FS

// Preset is one example script shipped inside the binary.
type Preset struct {
	Name   string
	Script Script
}

// Presets holds the embedded example scripts, sorted by name. A preset
// that fails to parse is silently skipped; the embedded files are part
// of the build, so the test suite catches that.
var Presets = func() []Preset {
	var presets []Preset
	fs.WalkDir(presetFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, err := presetFS.ReadFile(path)
		if err != nil {
			return nil
		}
		var script Script
		if yaml.Unmarshal(data, &script) != nil {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		presets = append(presets, Preset{Name: name, Script: script})
		return nil
	})
	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Name < presets[j].Name
	})
	return presets
}()
