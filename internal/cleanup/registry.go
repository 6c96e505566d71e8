// Package cleanup provides the ordered registry of compensating actions that
// guarantees build resources are torn down on failure.
//
// Every operation that acquires a resource with cleanup obligations (a VM, a
// disk, a mount, a temporary account, a network share) registers a
// compensating action. The normal success path unregisters it explicitly; the
// failure path invokes all remaining actions in reverse registration order.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResourceType tags the kind of resource a cleanup entry compensates for.
type ResourceType string

const (
	ResourceVM             ResourceType = "VM"
	ResourceDisk           ResourceType = "Disk"
	ResourceImageMount     ResourceType = "ImageMount"
	ResourceRemovableMedia ResourceType = "RemovableMedia"
	ResourceTempFile       ResourceType = "TempFile"
	ResourceNetworkShare   ResourceType = "NetworkShare"
	ResourceUserAccount    ResourceType = "UserAccount"
	ResourceOther          ResourceType = "Other"
)

// Action is a compensating action. It must be safe to call once; a failed
// action stays registered for operator visibility.
type Action func(ctx context.Context) error

// Entry is one registered compensating action.
type Entry struct {
	ID           string
	Name         string
	Resource     ResourceType
	ResourceID   string
	RegisteredAt time.Time

	action Action
}

// Summary aggregates one InvokeAll pass. Individual action failures are never
// propagated, only counted.
type Summary struct {
	Invoked   int
	Succeeded int
	Failed    int
}

// Logger is the message sink used by the registry. It is never a hard
// dependency; a nil logger falls back to the standard logger.
type Logger func(format string, v ...any)

// Registry is an ordered, mutex-guarded list of cleanup entries. An explicit
// instance is owned by the orchestrator and passed by reference; there is no
// package-level registry.
type Registry struct {
	mu      sync.Mutex
	entries []*Entry
	logf    Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logf Logger) *Registry {
	if logf == nil {
		logf = log.Printf
	}
	return &Registry{logf: logf}
}

// Register appends a compensating action and returns its opaque id.
func (r *Registry) Register(name string, resource ResourceType, resourceID string, action Action) string {
	entry := &Entry{
		ID:           uuid.NewString(),
		Name:         name,
		Resource:     resource,
		ResourceID:   resourceID,
		RegisteredAt: time.Now(),
		action:       action,
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	r.logf("[Cleanup] Registered %s %q (%s)", resource, name, entry.ID)
	return entry.ID
}

// Unregister removes an entry without running its action. This is the normal
// success path: the resource was consumed or handed over deliberately.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, entry := range r.entries {
		if entry.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of the registered entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Entry, len(r.entries))
	for i, entry := range r.entries {
		snapshot[i] = *entry
	}
	return snapshot
}

// InvokeAll runs the registered compensating actions in reverse registration
// order. Entries whose action succeeds are removed; entries whose action
// fails are logged and retained so a failed cleanup never silently
// disappears. The filter restricts invocation to the given resource types;
// with no filter every entry is invoked.
//
// The entry list is snapshotted before iteration so cleanup does not race
// with concurrent registration from another in-flight operation.
func (r *Registry) InvokeAll(ctx context.Context, reason string, filter ...ResourceType) Summary {
	r.mu.Lock()
	snapshot := make([]*Entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return Summary{}
	}

	wanted := make(map[ResourceType]bool, len(filter))
	for _, resource := range filter {
		wanted[resource] = true
	}

	r.logf("[Cleanup] Invoking cleanup (%s): %d entries registered", reason, len(snapshot))

	var summary Summary
	for i := len(snapshot) - 1; i >= 0; i-- {
		entry := snapshot[i]
		if len(wanted) > 0 && !wanted[entry.Resource] {
			continue
		}

		summary.Invoked++
		r.logf("[Cleanup] Running %s %q (%s)", entry.Resource, entry.Name, entry.ResourceID)

		if err := r.runAction(ctx, entry); err != nil {
			summary.Failed++
			r.logf("[Cleanup] Warning: %s %q failed, entry retained: %v", entry.Resource, entry.Name, err)
			continue
		}

		summary.Succeeded++
		r.Unregister(entry.ID)
	}

	r.logf("[Cleanup] Done (%s): %d invoked, %d succeeded, %d failed", reason, summary.Invoked, summary.Succeeded, summary.Failed)
	return summary
}

// runAction invokes one action, converting a panic into an error so that a
// misbehaving action can never abort the cleanup pass.
func (r *Registry) runAction(ctx context.Context, entry *Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cleanup action panicked: %v", rec)
		}
	}()
	return entry.action(ctx)
}
