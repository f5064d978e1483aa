// Package inventory talks to the central server inventory. Every
// server, virtual or physical, has one inventory object whose
// attributes describe the desired state of the machine.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Attributes commonly used on server objects.
const (
	AttrHostname    = "hostname"
	AttrInternIP    = "intern_ip"
	AttrState       = "state"
	AttrNumCPU      = "num_cpu"
	AttrMemory      = "memory" // MiB
	AttrDiskSizeGiB = "disk_size_gib"
	AttrHypervisor  = "hypervisor"
	AttrEnvironment = "environment"
	AttrOS          = "os"
	AttrSSHPubKey   = "sshd_pubkey"
)

// Server types of the objects this tool operates on.
const (
	TypeVM         = "vm"
	TypeHypervisor = "hypervisor"
)

// Server states relevant to placement and admission decisions.
const (
	StateOnline         = "online"
	StateOnlineReserved = "online_reserved"
	StateMaintenance    = "maintenance"
	StateRetired        = "retired"
)

type persister interface {
	commit(ctx context.Context, serverType, object string, changes map[string]any) error
	remove(ctx context.Context, serverType, object string) error
	fetch(ctx context.Context, serverType, object string) (map[string]any, error)
}

// Record is a local working copy of one inventory object. Attribute
// writes stay local until Commit sends them back in one batch.
type Record struct {
	serverType string
	object     string // inventory key, survives hostname edits until commit
	attrs      map[string]any
	dirty      map[string]any
	store      persister
}

// NewRecord builds a record that is not backed by an inventory
// connection. Commit and Delete only mutate the local copy. Bound
// records come from a Client instead.
func NewRecord(serverType string, attrs map[string]any) *Record {
	return newRecord(serverType, attrs, nil)
}

func newRecord(serverType string, attrs map[string]any, store persister) *Record {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = normalizeAttr(v)
	}

	hostname, _ := copied[AttrHostname].(string)

	return &Record{
		serverType: serverType,
		object:     hostname,
		attrs:      copied,
		dirty:      map[string]any{},
		store:      store,
	}
}

// normalizeAttr folds JSON number decoding into int64 where the value
// is integral, so attribute comparisons do not depend on the wire type.
func normalizeAttr(v any) any {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	}

	return v
}

func (r *Record) ServerType() string { return r.serverType }

// Hostname returns the current, possibly uncommitted, hostname.
func (r *Record) Hostname() string {
	h, _ := r.attrs[AttrHostname].(string)
	return h
}

// Get returns an attribute value, nil if unset.
func (r *Record) Get(attr string) any {
	return r.attrs[attr]
}

// Attrs returns a copy of all attributes, staged changes included.
func (r *Record) Attrs() map[string]any {
	copied := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		copied[k] = v
	}

	return copied
}

// GetString returns a string attribute, empty if unset.
func (r *Record) GetString(attr string) string {
	s, _ := r.attrs[attr].(string)
	return s
}

// GetInt returns an integer attribute or an error when the attribute
// is unset or not a whole number.
func (r *Record) GetInt(attr string) (int64, error) {
	v, ok := r.attrs[attr]
	if !ok || v == nil {
		return 0, configErrorf("%s %q has no %s attribute", r.serverType, r.object, attr)
	}

	n, ok := normalizeAttr(v).(int64)
	if !ok {
		return 0, configErrorf("%s %q attribute %s is %T, expected integer", r.serverType, r.object, attr, v)
	}

	return n, nil
}

// Set stages an attribute change. No-op writes do not dirty the record.
func (r *Record) Set(attr string, value any) {
	value = normalizeAttr(value)
	if current, ok := r.attrs[attr]; ok && current == value {
		return
	}
	r.attrs[attr] = value
	r.dirty[attr] = value
}

// IsDirty reports whether uncommitted changes exist.
func (r *Record) IsDirty() bool {
	return len(r.dirty) > 0
}

// DirtyAttrs lists the staged attribute names, sorted.
func (r *Record) DirtyAttrs() []string {
	attrs := make([]string, 0, len(r.dirty))
	for k := range r.dirty {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	return attrs
}

// Commit writes the staged changes back to the inventory in one batch
// and clears the dirty set. Detached records just keep the local copy.
func (r *Record) Commit(ctx context.Context) error {
	if len(r.dirty) == 0 {
		return nil
	}

	if r.store != nil {
		if err := r.store.commit(ctx, r.serverType, r.object, r.dirty); err != nil {
			return fmt.Errorf("commit %s %q: %w", r.serverType, r.object, err)
		}
	}

	r.object = r.Hostname()
	r.dirty = map[string]any{}

	return nil
}

// Delete removes the object from the inventory.
func (r *Record) Delete(ctx context.Context) error {
	if r.store != nil {
		if err := r.store.remove(ctx, r.serverType, r.object); err != nil {
			return fmt.Errorf("delete %s %q: %w", r.serverType, r.object, err)
		}
	}
	r.dirty = map[string]any{}

	return nil
}

// Reload replaces the local copy with the current inventory content.
// It refuses to run while uncommitted changes exist, because that
// would silently discard them.
func (r *Record) Reload(ctx context.Context) error {
	if r.IsDirty() {
		return configErrorf("%s %q has uncommitted changes (%s), refusing to reload",
			r.serverType, r.object, strings.Join(r.DirtyAttrs(), ", "))
	}
	if r.store == nil {
		return nil
	}

	attrs, err := r.store.fetch(ctx, r.serverType, r.object)
	if err != nil {
		return fmt.Errorf("reload %s %q: %w", r.serverType, r.object, err)
	}

	fresh := make(map[string]any, len(attrs))
	for k, v := range attrs {
		fresh[k] = normalizeAttr(v)
	}
	r.attrs = fresh

	return nil
}
