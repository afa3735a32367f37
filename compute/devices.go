package compute

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Device is a compute device of a Platform.
type Device struct {
	platform *Platform
	id       DeviceID
	info     DeviceInfo
}

// Platform the device belongs to.
func (d *Device) Platform() *Platform { return d.platform }

// ID used by the driver for the device.
func (d *Device) ID() DeviceID { return d.id }

// Info returns the description of the device reported by the driver.
func (d *Device) Info() DeviceInfo { return d.info }

// Name of the device.
func (d *Device) Name() string { return d.info.Name }

// Type of the device.
func (d *Device) Type() DeviceType { return d.info.Type }

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("%s/%s (%s)", d.platform.name, d.info.Name, d.info.Type)
}

// DefaultPreference is the device preference used by SelectDevice when none is given: GPU first, then CPU.
var DefaultPreference = []DeviceType{DeviceTypeGPU, DeviceTypeCPU}

// SelectDevice returns the first device found, trying each device type of preference in order (by default
// DefaultPreference), and for each one the platforms in decreasing priority.
//
// Each device type not found, except the last one, is logged before trying the next one.
// If platformName is given, only that platform is searched.
// If no device is found it returns an error with status DeviceNotFound.
func SelectDevice(platformName string, preference ...DeviceType) (*Device, error) {
	if len(preference) == 0 {
		preference = DefaultPreference
	}
	var candidates []*Platform
	if platformName != "" {
		p, err := GetPlatform(platformName)
		if err != nil {
			return nil, err
		}
		candidates = []*Platform{p}
	} else {
		candidates = Platforms()
	}
	if len(candidates) == 0 {
		return nil, errors.WithStack(&Error{Op: "SelectDevice", Status: PlatformNotFoundKHR,
			Detail: "no platforms registered"})
	}

	var tried []string
	for ii, deviceType := range preference {
		for _, p := range candidates {
			devices, err := p.Devices(deviceType)
			if err != nil {
				if !IsStatus(err, DeviceNotFound) {
					klog.Warningf("compute: listing %s devices of platform %q: %v", deviceType, p.name, err)
				}
				continue
			}
			klog.V(1).Infof("compute: selected device %s", devices[0])
			return devices[0], nil
		}
		tried = append(tried, deviceType.String())
		if ii+1 < len(preference) {
			klog.Infof("compute: %s not found, trying %s", deviceType, preference[ii+1])
		}
	}
	return nil, errors.WithStack(&Error{Op: "SelectDevice", Status: DeviceNotFound,
		Detail: fmt.Sprintf("no device of type %s found", strings.Join(tried, " or "))})
}
