package vm

import (
	"context"
	"sync"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/remote"
	"github.com/paddock-sh/paddock/internal/transaction"
)

// mockCapability is a func-field implementation of
// hypervisor.Capability. Unset fields behave like an empty, healthy
// host: nothing defined, everything succeeds.
type mockCapability struct {
	mu sync.Mutex

	fqdn  string
	state string

	vmDefinedFunc  func(ctx context.Context, g hypervisor.Guest) (bool, error)
	vmRunningFunc  func(ctx context.Context, g hypervisor.Guest) (bool, error)
	startVMFunc    func(ctx context.Context, g hypervisor.Guest) error
	stopGraceFunc  func(ctx context.Context, g hypervisor.Guest) error
	stopForceFunc  func(ctx context.Context, g hypervisor.Guest) error
	deleteVMFunc   func(ctx context.Context, g hypervisor.Guest, keepStorage bool) error
	syncFunc       func(ctx context.Context, g hypervisor.Guest) (map[string]int64, error)
	setNumCPUFunc  func(ctx context.Context, g hypervisor.Guest, count int) error
	setMemoryFunc  func(ctx context.Context, g hypervisor.Guest, memoryMiB int64) error
	setDiskFunc    func(ctx context.Context, g hypervisor.Guest, sizeGiB int64) error
	renameVMFunc   func(ctx context.Context, g hypervisor.Guest, newFQDN string) error
	migrateVMFunc  func(ctx context.Context, g hypervisor.Guest, target hypervisor.Capability, offline bool, tx *transaction.Transaction) error
	checkVMFunc    func(ctx context.Context, g hypervisor.Guest) error
	freeMemoryFunc func(ctx context.Context) (int64, error)

	startCalls    []string
	stopCalls     []string
	forceCalls    []string
	defineCalls   []string
	undefineCalls []string
	redefineCalls []string
	deleteCalls   []string
	renameCalls   []string
}

func (m *mockCapability) FQDN() string {
	if m.fqdn == "" {
		return "hv1.example.net"
	}
	return m.fqdn
}

func (m *mockCapability) StateTag() string {
	if m.state == "" {
		return "online"
	}
	return m.state
}

func (m *mockCapability) VMDefined(ctx context.Context, g hypervisor.Guest) (bool, error) {
	if m.vmDefinedFunc != nil {
		return m.vmDefinedFunc(ctx, g)
	}
	return false, nil
}

func (m *mockCapability) VMRunning(ctx context.Context, g hypervisor.Guest) (bool, error) {
	if m.vmRunningFunc != nil {
		return m.vmRunningFunc(ctx, g)
	}
	return false, nil
}

func (m *mockCapability) StartVM(ctx context.Context, g hypervisor.Guest) error {
	m.mu.Lock()
	m.startCalls = append(m.startCalls, g.FQDN)
	m.mu.Unlock()
	if m.startVMFunc != nil {
		return m.startVMFunc(ctx, g)
	}
	return nil
}

func (m *mockCapability) StopVMGraceful(ctx context.Context, g hypervisor.Guest) error {
	m.mu.Lock()
	m.stopCalls = append(m.stopCalls, g.FQDN)
	m.mu.Unlock()
	if m.stopGraceFunc != nil {
		return m.stopGraceFunc(ctx, g)
	}
	return nil
}

func (m *mockCapability) StopVMForce(ctx context.Context, g hypervisor.Guest) error {
	m.mu.Lock()
	m.forceCalls = append(m.forceCalls, g.FQDN)
	m.mu.Unlock()
	if m.stopForceFunc != nil {
		return m.stopForceFunc(ctx, g)
	}
	return nil
}

func (m *mockCapability) DefineVM(_ context.Context, g hypervisor.Guest) error {
	m.mu.Lock()
	m.defineCalls = append(m.defineCalls, g.FQDN)
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) UndefineVM(_ context.Context, g hypervisor.Guest) error {
	m.mu.Lock()
	m.undefineCalls = append(m.undefineCalls, g.FQDN)
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) DeleteVM(ctx context.Context, g hypervisor.Guest, keepStorage bool) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, g.FQDN)
	m.mu.Unlock()
	if m.deleteVMFunc != nil {
		return m.deleteVMFunc(ctx, g, keepStorage)
	}
	return nil
}

func (m *mockCapability) RedefineVM(_ context.Context, g hypervisor.Guest) error {
	m.mu.Lock()
	m.redefineCalls = append(m.redefineCalls, g.FQDN)
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) RenameVM(ctx context.Context, g hypervisor.Guest, newFQDN string) error {
	m.mu.Lock()
	m.renameCalls = append(m.renameCalls, newFQDN)
	m.mu.Unlock()
	if m.renameVMFunc != nil {
		return m.renameVMFunc(ctx, g, newFQDN)
	}
	return nil
}

func (m *mockCapability) SetNumCPU(ctx context.Context, g hypervisor.Guest, count int) error {
	if m.setNumCPUFunc != nil {
		return m.setNumCPUFunc(ctx, g, count)
	}
	return nil
}

func (m *mockCapability) SetMemory(ctx context.Context, g hypervisor.Guest, memoryMiB int64) error {
	if m.setMemoryFunc != nil {
		return m.setMemoryFunc(ctx, g, memoryMiB)
	}
	return nil
}

func (m *mockCapability) SetDiskSize(ctx context.Context, g hypervisor.Guest, sizeGiB int64) error {
	if m.setDiskFunc != nil {
		return m.setDiskFunc(ctx, g, sizeGiB)
	}
	return nil
}

func (m *mockCapability) VMSyncFromHypervisor(ctx context.Context, g hypervisor.Guest) (map[string]int64, error) {
	if m.syncFunc != nil {
		return m.syncFunc(ctx, g)
	}
	return map[string]int64{}, nil
}

func (m *mockCapability) CheckVM(ctx context.Context, g hypervisor.Guest) error {
	if m.checkVMFunc != nil {
		return m.checkVMFunc(ctx, g)
	}
	return nil
}

func (m *mockCapability) FreeMemoryMiB(ctx context.Context) (int64, error) {
	if m.freeMemoryFunc != nil {
		return m.freeMemoryFunc(ctx)
	}
	return 1 << 20, nil
}

func (m *mockCapability) MigrateVM(ctx context.Context, g hypervisor.Guest, target hypervisor.Capability, offline bool, tx *transaction.Transaction) error {
	if m.migrateVMFunc != nil {
		return m.migrateVMFunc(ctx, g, target, offline, tx)
	}
	return nil
}

// mockGuestSession scripts command results inside the guest.
type mockGuestSession struct {
	mu      sync.Mutex
	calls   []string
	results map[string]remote.Result
	errs    map[string]error
	meminfo map[string]int64
}

func (m *mockGuestSession) Run(_ context.Context, command string, _ ...remote.RunOption) (remote.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, command)
	m.mu.Unlock()

	if err, ok := m.errs[command]; ok {
		return remote.Result{}, err
	}
	if res, ok := m.results[command]; ok {
		return res, nil
	}

	return remote.Result{}, nil
}

func (m *mockGuestSession) Meminfo(context.Context) (map[string]int64, error) {
	return m.meminfo, nil
}
