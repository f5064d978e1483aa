package hypervisor

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/paddock-sh/paddock/internal/remote"
	"github.com/paddock-sh/paddock/internal/transaction"
)

// libvirtAPI defines the libvirt operations this package needs. It is
// satisfied by *libvirt.Libvirt in production and by mocks in tests.
type libvirtAPI interface {
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)
	DomainGetInfo(dom libvirt.Domain) (state uint8, maxMem uint64, memory uint64, nrVirtCPU uint16, cpuTime uint64, err error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	DomainCreate(dom libvirt.Domain) error
	DomainShutdown(dom libvirt.Domain) error
	DomainDestroy(dom libvirt.Domain) error
	DomainDefineXML(xml string) (libvirt.Domain, error)
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	DomainSetVcpusFlags(dom libvirt.Domain, nvcpus uint32, flags uint32) error
	DomainSetMemoryFlags(dom libvirt.Domain, memory uint64, flags uint32) error
	DomainBlockResize(dom libvirt.Domain, disk string, size uint64, flags libvirt.DomainBlockResizeFlags) error
	NodeGetInfo() (model [32]int8, memory uint64, cpus int32, mhz int32, nodes int32, sockets int32, cores int32, threads int32, err error)
}

// commandRunner is the slice of remote.Session used for storage and
// host probing commands.
type commandRunner interface {
	Run(ctx context.Context, command string, opts ...remote.RunOption) (remote.Result, error)
}

// Capability is the full set of operations the lifecycle layer may ask
// of a hypervisor. *Hypervisor implements it for KVM hosts; tests
// substitute mocks.
type Capability interface {
	FQDN() string
	StateTag() string

	VMDefined(ctx context.Context, g Guest) (bool, error)
	VMRunning(ctx context.Context, g Guest) (bool, error)
	StartVM(ctx context.Context, g Guest) error
	StopVMGraceful(ctx context.Context, g Guest) error
	StopVMForce(ctx context.Context, g Guest) error
	DefineVM(ctx context.Context, g Guest) error
	UndefineVM(ctx context.Context, g Guest) error
	DeleteVM(ctx context.Context, g Guest, keepStorage bool) error
	RedefineVM(ctx context.Context, g Guest) error
	RenameVM(ctx context.Context, g Guest, newFQDN string) error

	SetNumCPU(ctx context.Context, g Guest, count int) error
	SetMemory(ctx context.Context, g Guest, memoryMiB int64) error
	SetDiskSize(ctx context.Context, g Guest, sizeGiB int64) error

	VMSyncFromHypervisor(ctx context.Context, g Guest) (map[string]int64, error)

	CheckVM(ctx context.Context, g Guest) error
	FreeMemoryMiB(ctx context.Context) (int64, error)
	MigrateVM(ctx context.Context, g Guest, target Capability, offline bool, tx *transaction.Transaction) error
}
