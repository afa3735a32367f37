package compute

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Platform is a compute runtime backed by a Driver. Platforms are registered by the driver packages, usually
// from their init function, and are searched in decreasing order of priority.
type Platform struct {
	name     string
	priority int
	driver   Driver
}

var (
	platformsMu sync.Mutex
	platforms   = make(map[string]*Platform)
)

// RegisterPlatform makes a driver available under the given name.
// Platforms with higher priority are preferred by SelectDevice.
//
// It returns an error if the name is already registered.
func RegisterPlatform(name string, priority int, driver Driver) error {
	if name == "" || driver == nil {
		return errors.Errorf("RegisterPlatform(%q): name and driver must be given", name)
	}
	platformsMu.Lock()
	defer platformsMu.Unlock()
	if _, found := platforms[name]; found {
		return errors.Errorf("platform %q already registered", name)
	}
	platforms[name] = &Platform{name: name, priority: priority, driver: driver}
	klog.V(2).Infof("compute: registered platform %q (priority %d)", name, priority)
	return nil
}

// UnregisterPlatform removes the platform from the registry. Objects already created on it keep working.
func UnregisterPlatform(name string) {
	platformsMu.Lock()
	defer platformsMu.Unlock()
	delete(platforms, name)
}

// GetPlatform returns the registered platform with the given name.
func GetPlatform(name string) (*Platform, error) {
	platformsMu.Lock()
	defer platformsMu.Unlock()
	p, found := platforms[name]
	if !found {
		return nil, errors.WithStack(&Error{Op: "GetPlatform", Status: PlatformNotFoundKHR,
			Detail: fmt.Sprintf("no platform named %q is registered", name)})
	}
	return p, nil
}

// Platforms returns all registered platforms, sorted by decreasing priority, and then by name.
func Platforms() []*Platform {
	platformsMu.Lock()
	list := make([]*Platform, 0, len(platforms))
	for _, p := range platforms {
		list = append(list, p)
	}
	platformsMu.Unlock()
	slices.SortFunc(list, func(a, b *Platform) int {
		if a.priority != b.priority {
			return b.priority - a.priority
		}
		if a.name < b.name {
			return -1
		}
		if a.name > b.name {
			return 1
		}
		return 0
	})
	return list
}

// Name under which the platform was registered.
func (p *Platform) Name() string { return p.name }

// Priority of the platform.
func (p *Platform) Priority() int { return p.priority }

// Driver backing the platform.
func (p *Platform) Driver() Driver { return p.driver }

// Info as reported by the driver.
func (p *Platform) Info() PlatformInfo { return p.driver.PlatformInfo() }

// String implements fmt.Stringer.
func (p *Platform) String() string {
	info := p.Info()
	return fmt.Sprintf("%s (%s %s)", p.name, info.Vendor, info.Version)
}

// Devices lists the devices of the platform matching the deviceType mask.
// It returns an error with status DeviceNotFound if there are none.
func (p *Platform) Devices(deviceType DeviceType) ([]*Device, error) {
	ids, status := p.driver.Devices(deviceType)
	if err := toError("Devices", status); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, toError("Devices", DeviceNotFound)
	}
	devices := make([]*Device, 0, len(ids))
	for _, id := range ids {
		info, status := p.driver.DeviceInfo(id)
		if err := toError("DeviceInfo", status); err != nil {
			return nil, err
		}
		devices = append(devices, &Device{platform: p, id: id, info: info})
	}
	return devices, nil
}
