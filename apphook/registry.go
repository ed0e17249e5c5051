// Package apphook holds the registry of externally-supplied route sets which
// can be attached to content nodes.
package apphook

import (
	"net/http"
	"sort"
)

// A MenuEntry is one navigation item an apphook contributes below its mount.
type MenuEntry struct {
	Title string
	Path  string // relative to the mount path
}

// An Apphook delegates the URL subtree below its mount to Handler. Menu is
// optional.
type Apphook struct {
	Code    string // stable identifier, stored on nodes
	Name    string // human-readable
	Handler http.Handler
	Menu    func(mountPath string) []MenuEntry
}

type Registry map[string]*Apphook

func (reg Registry) Add(hook *Apphook) {
	reg[hook.Code] = hook
}

func (reg Registry) All() []string {
	var all = make([]string, 0, len(reg))
	for code := range reg {
		all = append(all, code)
	}
	sort.Strings(all)
	return all
}

func (reg Registry) Get(code string) (*Apphook, bool) {
	hook, ok := reg[code]
	return hook, ok
}

var DefaultRegistry = make(Registry)

func Register(hook *Apphook) {
	DefaultRegistry.Add(hook)
}
