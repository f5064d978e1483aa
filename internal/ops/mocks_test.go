package ops

import (
	"context"
	"sync"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/remote"
	"github.com/paddock-sh/paddock/internal/transaction"
)

// mockHost is a stateful hypervisor.Capability. Power and definition
// operations update its state so polling loops in the VM layer
// terminate immediately.
type mockHost struct {
	mu sync.Mutex

	fqdn    string
	state   string
	defined bool
	running bool
	freeMiB int64

	syncResult map[string]int64
	checkErr   error
	startErr   error
	migrateErr error

	calls    []string
	setCPU   []int
	setMem   []int64
	setDisk  []int64
	renames  []string
	migrated []string
}

func (m *mockHost) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockHost) FQDN() string {
	if m.fqdn == "" {
		return "hv1.example.net"
	}
	return m.fqdn
}

func (m *mockHost) StateTag() string {
	if m.state == "" {
		return "online"
	}
	return m.state
}

func (m *mockHost) VMDefined(context.Context, hypervisor.Guest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defined, nil
}

func (m *mockHost) VMRunning(context.Context, hypervisor.Guest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running, nil
}

func (m *mockHost) StartVM(context.Context, hypervisor.Guest) error {
	m.record("start")
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	return nil
}

func (m *mockHost) StopVMGraceful(context.Context, hypervisor.Guest) error {
	m.record("stop")
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *mockHost) StopVMForce(context.Context, hypervisor.Guest) error {
	m.record("force")
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *mockHost) DefineVM(context.Context, hypervisor.Guest) error {
	m.record("define")
	m.mu.Lock()
	m.defined = true
	m.mu.Unlock()
	return nil
}

func (m *mockHost) UndefineVM(context.Context, hypervisor.Guest) error {
	m.record("undefine")
	m.mu.Lock()
	m.defined = false
	m.mu.Unlock()
	return nil
}

func (m *mockHost) DeleteVM(_ context.Context, _ hypervisor.Guest, keepStorage bool) error {
	if keepStorage {
		m.record("delete-keep-storage")
	} else {
		m.record("delete")
	}
	m.mu.Lock()
	m.defined = false
	m.mu.Unlock()
	return nil
}

func (m *mockHost) RedefineVM(context.Context, hypervisor.Guest) error {
	m.record("redefine")
	return nil
}

func (m *mockHost) RenameVM(_ context.Context, _ hypervisor.Guest, newFQDN string) error {
	m.record("rename")
	m.mu.Lock()
	m.renames = append(m.renames, newFQDN)
	m.mu.Unlock()
	return nil
}

func (m *mockHost) SetNumCPU(_ context.Context, _ hypervisor.Guest, count int) error {
	m.record("set-cpu")
	m.mu.Lock()
	m.setCPU = append(m.setCPU, count)
	m.mu.Unlock()
	return nil
}

func (m *mockHost) SetMemory(_ context.Context, _ hypervisor.Guest, memoryMiB int64) error {
	m.record("set-memory")
	m.mu.Lock()
	m.setMem = append(m.setMem, memoryMiB)
	m.mu.Unlock()
	return nil
}

func (m *mockHost) SetDiskSize(_ context.Context, _ hypervisor.Guest, sizeGiB int64) error {
	m.record("set-disk")
	m.mu.Lock()
	m.setDisk = append(m.setDisk, sizeGiB)
	m.mu.Unlock()
	return nil
}

func (m *mockHost) VMSyncFromHypervisor(context.Context, hypervisor.Guest) (map[string]int64, error) {
	if m.syncResult != nil {
		return m.syncResult, nil
	}
	return map[string]int64{}, nil
}

func (m *mockHost) CheckVM(context.Context, hypervisor.Guest) error {
	return m.checkErr
}

func (m *mockHost) FreeMemoryMiB(context.Context) (int64, error) {
	if m.freeMiB != 0 {
		return m.freeMiB, nil
	}
	return 1 << 20, nil
}

func (m *mockHost) MigrateVM(_ context.Context, _ hypervisor.Guest, target hypervisor.Capability, _ bool, _ *transaction.Transaction) error {
	m.record("migrate")
	m.mu.Lock()
	m.migrated = append(m.migrated, target.FQDN())
	m.mu.Unlock()
	if m.migrateErr != nil {
		return m.migrateErr
	}
	m.defined = false
	return nil
}

func (m *mockHost) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockGuestSession scripts command results inside the guest.
type mockGuestSession struct {
	mu      sync.Mutex
	calls   []string
	results map[string]remote.Result
	meminfo map[string]int64
}

func (m *mockGuestSession) Run(_ context.Context, command string, _ ...remote.RunOption) (remote.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, command)
	m.mu.Unlock()

	if res, ok := m.results[command]; ok {
		return res, nil
	}

	return remote.Result{}, nil
}

func (m *mockGuestSession) Meminfo(context.Context) (map[string]int64, error) {
	return m.meminfo, nil
}

func (m *mockGuestSession) commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
