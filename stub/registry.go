// Package stub implements the fallback-resolver capability: a registry
// of synthetic symbol definitions a caller plugs in as a
// reloc.FallbackResolver, so a loaded object's otherwise-unresolved
// imports (libc, pthread, ...) land on a Go implementation instead of
// failing relocation. Grounded on a self-registering-hooks stub
// registry design: the registry maps names to Go hooks, and Install
// gives each requested name a code slot in a Unicorn sandbox with a
// CPU-level execution hook; the slot address is what the relocation
// engine binds through a reloc.FallbackResolver.
package stub

import (
	"strings"
	"sync"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	glog "github.com/elfload/elfload/internal/log"
	"go.uber.org/zap"
)

// Def is one registered stub: the canonical symbol name, any aliases
// the same implementation answers to, the category used for logging,
// and the hook itself.
type Def struct {
	Name     string
	Aliases  []string
	Category string
	Hook     Hook
}

// Registry holds every registered stub plus pattern-based detectors
// that register additional stubs once a characteristic symbol set is
// observed (e.g. seeing any libc allocator import activates the whole
// libc stub set).
type Registry struct {
	mu    sync.RWMutex
	stubs map[string]*Def

	detectorsMu sync.RWMutex
	detectors   []Detector
	activated   map[string]bool

	installMu sync.Mutex
	slots     map[string]uintptr
}

// Detector activates a group of stubs once any of Patterns appears
// among an image's unresolved import names.
type Detector struct {
	Name        string
	Patterns    []string
	Activate    func(r *Registry)
	Description string
}

// DefaultRegistry is the global registry stub subpackages register
// into through their Register functions (libc.Register,
// libc.RegisterString, pthread.Register).
var DefaultRegistry = New()

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		stubs:     make(map[string]*Def),
		activated: make(map[string]bool),
	}
}

// Register adds def under its name and every alias.
func (r *Registry) Register(def Def) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := def
	r.stubs[def.Name] = &d
	for _, alias := range def.Aliases {
		r.stubs[alias] = &d
	}
	if glog.L != nil {
		glog.L.Debug("registered stub",
			zap.String("cat", def.Category),
			zap.String("fn", def.Name),
			zap.Strings("aliases", def.Aliases),
		)
	}
}

// RegisterDetector adds a pattern-activated group of stubs.
func (r *Registry) RegisterDetector(d Detector) {
	r.detectorsMu.Lock()
	defer r.detectorsMu.Unlock()
	r.detectors = append(r.detectors, d)
}

// checkDetectors activates any detector whose pattern matches a name
// in the current unresolved set.
func (r *Registry) checkDetectors(names []string) {
	r.detectorsMu.Lock()
	defer r.detectorsMu.Unlock()
	for _, det := range r.detectors {
		if r.activated[det.Name] {
			continue
		}
		for _, name := range names {
			if matchesAny(name, det.Patterns) {
				r.activated[det.Name] = true
				det.Activate(r)
				break
			}
		}
	}
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if name == p || strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// Install wires this registry's stubs into a Unicorn-backed sandbox:
// each name that has a registered Def gets a one-instruction code slot
// whose execution is intercepted and redirected to the Go Hook. It
// returns the slot address chosen for each installed name, which the
// caller feeds to the relocation engine as a reloc.FallbackResolver.
func (r *Registry) Install(mu uc.Unicorn, arch ArchKind, slotBase uintptr, names []string) (map[string]uintptr, error) {
	r.checkDetectors(names)

	r.installMu.Lock()
	defer r.installMu.Unlock()
	if r.slots == nil {
		r.slots = make(map[string]uintptr)
	}

	out := make(map[string]uintptr)
	next := slotBase + uintptr(len(r.slots))*4
	for _, name := range names {
		if addr, already := r.slots[name]; already {
			out[name] = addr
			continue
		}
		r.mu.RLock()
		def, ok := r.stubs[name]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		addr := next
		next += 4
		cpu := CPU{mu: mu, arch: arch}
		hook := def.Hook
		category := def.Category
		stubName := name
		_, err := mu.HookAdd(uc.HOOK_CODE, func(_ uc.Unicorn, _ uint64, _ uint32) {
			if glog.L != nil {
				glog.L.Debug("stub called", zap.String("cat", category), zap.String("fn", stubName))
			}
			hook(cpu)
			cpu.Return()
		}, uint64(addr), uint64(addr+3))
		if err != nil {
			return nil, err
		}
		r.slots[name] = addr
		out[name] = addr
	}
	return out, nil
}

// Count returns the number of registered stub names (including aliases).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stubs)
}

// Register adds a stub to the default registry.
func Register(def Def) { DefaultRegistry.Register(def) }

// RegisterDetector adds a detector to the default registry.
func RegisterDetector(d Detector) { DefaultRegistry.RegisterDetector(d) }
