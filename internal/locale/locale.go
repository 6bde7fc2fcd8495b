// Package locale loads the embedded translation files and resolves dotted keys
// such as "misc.voice.not_in_voice" with {{name}} interpolation.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Vars are substituted into {{name}} placeholders.
type Vars map[string]string

// Localize resolves key in one language.
type Localize func(key string, vars ...Vars) string

type Manager struct {
	bundles  map[string]map[string]string
	fallback string
}

// Load parses the embedded locale files. fallback must be one of them.
func Load(fallback string) (*Manager, error) {
	return LoadFS(embedded, "locales", fallback)
}

// LoadFS parses every *.yaml file in dir of fsys; the file name is the language code.
func LoadFS(fsys fs.FS, dir, fallback string) (*Manager, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	m := &Manager{bundles: map[string]map[string]string{}, fallback: fallback}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}

		flat := map[string]string{}
		flatten("", tree, flat)
		m.bundles[strings.TrimSuffix(e.Name(), ".yaml")] = flat
	}

	if _, ok := m.bundles[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q not found", fallback)
	}
	return m, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Has reports whether lang has a bundle.
func (m *Manager) Has(lang string) bool {
	_, ok := m.bundles[lang]
	return ok
}

// Languages lists the available codes, sorted.
func (m *Manager) Languages() []string {
	langs := make([]string, 0, len(m.bundles))
	for l := range m.bundles {
		langs = append(langs, l)
	}
	slices.Sort(langs)
	return langs
}

// Fallback is the language used when a key or language is missing.
func (m *Manager) Fallback() string { return m.fallback }

// Translate looks key up in lang, then in the fallback language. A key
// missing everywhere is returned as is.
func (m *Manager) Translate(lang, key string, vars ...Vars) string {
	s, ok := m.bundles[lang][key]
	if !ok {
		s, ok = m.bundles[m.fallback][key]
	}
	if !ok {
		return key
	}
	return interpolate(s, vars)
}

// For returns a Localize bound to lang.
func (m *Manager) For(lang string) Localize {
	return func(key string, vars ...Vars) string {
		return m.Translate(lang, key, vars...)
	}
}

func interpolate(s string, vars []Vars) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	pairs := make([]string, 0, 4)
	for _, v := range vars {
		for name, val := range v {
			pairs = append(pairs, "{{"+name+"}}", val)
		}
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
