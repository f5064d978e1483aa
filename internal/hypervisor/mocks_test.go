package hypervisor

import (
	"context"
	"strings"
	"sync"

	"github.com/digitalocean/go-libvirt"

	"github.com/paddock-sh/paddock/internal/remote"
)

// mockLibvirt is a func-field implementation of libvirtAPI. Unset
// fields get sensible defaults: no domains, an 8 core / 32 GiB node.
type mockLibvirt struct {
	mu sync.Mutex

	connectListAllDomainsFunc func(int32, libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainLookupByNameFunc    func(name string) (libvirt.Domain, error)
	domainGetStateFunc        func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainGetInfoFunc         func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)
	domainGetXMLDescFunc      func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	domainCreateFunc          func(dom libvirt.Domain) error
	domainShutdownFunc        func(dom libvirt.Domain) error
	domainDestroyFunc         func(dom libvirt.Domain) error
	domainDefineXMLFunc       func(xml string) (libvirt.Domain, error)
	domainUndefineFlagsFunc   func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	domainSetVcpusFlagsFunc   func(dom libvirt.Domain, nvcpus uint32, flags uint32) error
	domainSetMemoryFlagsFunc  func(dom libvirt.Domain, memory uint64, flags uint32) error
	domainBlockResizeFunc     func(dom libvirt.Domain, disk string, size uint64, flags libvirt.DomainBlockResizeFlags) error
	nodeGetInfoFunc           func() ([32]int8, uint64, int32, int32, int32, int32, int32, int32, error)

	defineXMLCalls []string
	undefineCalls  []string
	createCalls    []string
	destroyCalls   []string
	shutdownCalls  []string
}

func noDomainError() error {
	return libvirt.Error{Code: uint32(libvirt.ErrNoDomain), Message: "domain not found"}
}

func (m *mockLibvirt) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	if m.connectListAllDomainsFunc != nil {
		return m.connectListAllDomainsFunc(needResults, flags)
	}
	return nil, 0, nil
}

func (m *mockLibvirt) DomainLookupByName(name string) (libvirt.Domain, error) {
	if m.domainLookupByNameFunc != nil {
		return m.domainLookupByNameFunc(name)
	}
	return libvirt.Domain{}, noDomainError()
}

func (m *mockLibvirt) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	if m.domainGetStateFunc != nil {
		return m.domainGetStateFunc(dom, flags)
	}
	return int32(libvirt.DomainShutoff), 0, nil
}

func (m *mockLibvirt) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	if m.domainGetInfoFunc != nil {
		return m.domainGetInfoFunc(dom)
	}
	return uint8(libvirt.DomainShutoff), 0, 0, 0, 0, nil
}

func (m *mockLibvirt) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	if m.domainGetXMLDescFunc != nil {
		return m.domainGetXMLDescFunc(dom, flags)
	}
	return "<domain/>", nil
}

func (m *mockLibvirt) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, dom.Name)
	m.mu.Unlock()
	if m.domainCreateFunc != nil {
		return m.domainCreateFunc(dom)
	}
	return nil
}

func (m *mockLibvirt) DomainShutdown(dom libvirt.Domain) error {
	m.mu.Lock()
	m.shutdownCalls = append(m.shutdownCalls, dom.Name)
	m.mu.Unlock()
	if m.domainShutdownFunc != nil {
		return m.domainShutdownFunc(dom)
	}
	return nil
}

func (m *mockLibvirt) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	m.destroyCalls = append(m.destroyCalls, dom.Name)
	m.mu.Unlock()
	if m.domainDestroyFunc != nil {
		return m.domainDestroyFunc(dom)
	}
	return nil
}

func (m *mockLibvirt) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	m.defineXMLCalls = append(m.defineXMLCalls, xml)
	m.mu.Unlock()
	if m.domainDefineXMLFunc != nil {
		return m.domainDefineXMLFunc(xml)
	}
	return libvirt.Domain{}, nil
}

func (m *mockLibvirt) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	m.undefineCalls = append(m.undefineCalls, dom.Name)
	m.mu.Unlock()
	if m.domainUndefineFlagsFunc != nil {
		return m.domainUndefineFlagsFunc(dom, flags)
	}
	return nil
}

func (m *mockLibvirt) DomainSetVcpusFlags(dom libvirt.Domain, nvcpus uint32, flags uint32) error {
	if m.domainSetVcpusFlagsFunc != nil {
		return m.domainSetVcpusFlagsFunc(dom, nvcpus, flags)
	}
	return nil
}

func (m *mockLibvirt) DomainSetMemoryFlags(dom libvirt.Domain, memory uint64, flags uint32) error {
	if m.domainSetMemoryFlagsFunc != nil {
		return m.domainSetMemoryFlagsFunc(dom, memory, flags)
	}
	return nil
}

func (m *mockLibvirt) DomainBlockResize(dom libvirt.Domain, disk string, size uint64, flags libvirt.DomainBlockResizeFlags) error {
	if m.domainBlockResizeFunc != nil {
		return m.domainBlockResizeFunc(dom, disk, size, flags)
	}
	return nil
}

func (m *mockLibvirt) NodeGetInfo() ([32]int8, uint64, int32, int32, int32, int32, int32, int32, error) {
	if m.nodeGetInfoFunc != nil {
		return m.nodeGetInfoFunc()
	}
	// 32 GiB node with 8 cores.
	return [32]int8{}, 32 << 20, 8, 2400, 1, 1, 8, 1, nil
}

// mockRunner scripts remote command results by substring match, in the
// order rules were added. Unmatched commands succeed with no output.
type mockRunner struct {
	mu    sync.Mutex
	rules []runnerRule
	calls []string
}

type runnerRule struct {
	substr string
	result remote.Result
	err    error
}

func (m *mockRunner) on(substr, output string, exitStatus int) *mockRunner {
	m.rules = append(m.rules, runnerRule{
		substr: substr,
		result: remote.Result{Output: output, ExitStatus: exitStatus},
	})
	return m
}

func (m *mockRunner) Run(_ context.Context, command string, _ ...remote.RunOption) (remote.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, command)
	m.mu.Unlock()

	for _, rule := range m.rules {
		if strings.Contains(command, rule.substr) {
			return rule.result, rule.err
		}
	}

	return remote.Result{}, nil
}

func (m *mockRunner) commandsRun() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
