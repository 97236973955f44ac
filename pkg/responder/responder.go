// Package responder provides a software RDM responder that answers the
// basic identification parameters. It backs endpoints that have no real
// fixture behind them.
package responder

import (
	"encoding/binary"
	"sync"

	"github.com/e133-protocol/e133-go/pkg/rdm"
)

// Defaults for a DummyResponder.
const (
	DefaultManufacturerLabel = "Open Lighting"
	DefaultDeviceLabel       = "Dummy E1.33 Endpoint"
	DefaultSoftwareVersion   = "e133-go"
	DefaultModelID           = 0x0001
	DefaultSoftwareVersionID = 0x00000001
	DefaultProductCategory   = 0x7101
	protocolVersion          = 0x0100
)

// Config configures a DummyResponder.
type Config struct {
	UID               rdm.UID
	ManufacturerLabel string
	DeviceLabel       string
	SoftwareVersion   string
	ModelID           uint16
}

// DummyResponder answers SUPPORTED_PARAMETERS, DEVICE_INFO, DEVICE_LABEL,
// MANUFACTURER_LABEL, SOFTWARE_VERSION_LABEL and IDENTIFY_DEVICE for the
// root sub-device.
type DummyResponder struct {
	uid               rdm.UID
	manufacturerLabel string
	softwareVersion   string
	modelID           uint16

	mu          sync.Mutex
	deviceLabel string
	identify    bool
}

// New creates a responder. Empty labels take their defaults.
func New(cfg Config) *DummyResponder {
	if cfg.ManufacturerLabel == "" {
		cfg.ManufacturerLabel = DefaultManufacturerLabel
	}
	if cfg.DeviceLabel == "" {
		cfg.DeviceLabel = DefaultDeviceLabel
	}
	if cfg.SoftwareVersion == "" {
		cfg.SoftwareVersion = DefaultSoftwareVersion
	}
	if cfg.ModelID == 0 {
		cfg.ModelID = DefaultModelID
	}
	return &DummyResponder{
		uid:               cfg.UID,
		manufacturerLabel: truncateLabel(cfg.ManufacturerLabel),
		softwareVersion:   truncateLabel(cfg.SoftwareVersion),
		modelID:           cfg.ModelID,
		deviceLabel:       truncateLabel(cfg.DeviceLabel),
	}
}

// UID returns the responder's UID.
func (r *DummyResponder) UID() rdm.UID {
	return r.uid
}

// DeviceLabel returns the current device label.
func (r *DummyResponder) DeviceLabel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceLabel
}

// Identifying reports whether identify mode is on.
func (r *DummyResponder) Identifying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identify
}

// HandleRDMRequest answers req. Requests for other UIDs complete with
// UnknownUID; broadcast requests are processed and complete with
// WasBroadcast and no response.
func (r *DummyResponder) HandleRDMRequest(req *rdm.Request) (rdm.ResponseCode, *rdm.Response) {
	if !req.Destination.DirectedToUID(r.uid) {
		return rdm.UnknownUID, nil
	}
	if req.CommandClass == rdm.DiscoverCommand {
		return rdm.DiscoveryNotSupported, nil
	}

	response := r.handle(req)
	if req.Destination.IsBroadcast() {
		return rdm.WasBroadcast, nil
	}
	return rdm.CompletedOK, response
}

func (r *DummyResponder) handle(req *rdm.Request) *rdm.Response {
	if req.SubDevice != rdm.RootRDMDevice {
		return rdm.NewNackResponse(req, rdm.NRSubDeviceOutOfRange)
	}

	switch req.ParamID {
	case rdm.PIDSupportedParameters:
		return r.getOnly(req, r.supportedParameters)
	case rdm.PIDDeviceInfo:
		return r.getOnly(req, r.deviceInfo)
	case rdm.PIDManufacturerLabel:
		return r.getOnly(req, func() []byte { return []byte(r.manufacturerLabel) })
	case rdm.PIDSoftwareVersionLabel:
		return r.getOnly(req, func() []byte { return []byte(r.softwareVersion) })
	case rdm.PIDDeviceLabel:
		return r.handleDeviceLabel(req)
	case rdm.PIDIdentifyDevice:
		return r.handleIdentify(req)
	default:
		return rdm.NewNackResponse(req, rdm.NRUnknownPID)
	}
}

func (r *DummyResponder) getOnly(req *rdm.Request, data func() []byte) *rdm.Response {
	if req.CommandClass != rdm.GetCommand {
		return rdm.NewNackResponse(req, rdm.NRUnsupportedCommandClass)
	}
	if len(req.ParamData) != 0 {
		return rdm.NewNackResponse(req, rdm.NRFormatError)
	}
	return rdm.NewAckResponse(req, data())
}

func (r *DummyResponder) supportedParameters() []byte {
	// The required PIDs are implied and not listed.
	pids := []uint16{
		rdm.PIDDeviceLabel,
		rdm.PIDManufacturerLabel,
	}
	data := make([]byte, 2*len(pids))
	for i, pid := range pids {
		binary.BigEndian.PutUint16(data[2*i:], pid)
	}
	return data
}

func (r *DummyResponder) deviceInfo() []byte {
	data := make([]byte, 19)
	binary.BigEndian.PutUint16(data[0:], protocolVersion)
	binary.BigEndian.PutUint16(data[2:], r.modelID)
	binary.BigEndian.PutUint16(data[4:], DefaultProductCategory)
	binary.BigEndian.PutUint32(data[6:], DefaultSoftwareVersionID)
	binary.BigEndian.PutUint16(data[10:], 0)      // DMX footprint
	binary.BigEndian.PutUint16(data[12:], 0)      // current, total personality
	binary.BigEndian.PutUint16(data[14:], 0xffff) // no DMX start address
	binary.BigEndian.PutUint16(data[16:], 0)      // sub-device count
	data[18] = 0                                  // sensor count
	return data
}

func (r *DummyResponder) handleDeviceLabel(req *rdm.Request) *rdm.Response {
	switch req.CommandClass {
	case rdm.GetCommand:
		if len(req.ParamData) != 0 {
			return rdm.NewNackResponse(req, rdm.NRFormatError)
		}
		return rdm.NewAckResponse(req, []byte(r.DeviceLabel()))
	case rdm.SetCommand:
		if len(req.ParamData) > rdm.MaxLabelSize {
			return rdm.NewNackResponse(req, rdm.NRFormatError)
		}
		r.mu.Lock()
		r.deviceLabel = string(req.ParamData)
		r.mu.Unlock()
		return rdm.NewAckResponse(req, nil)
	default:
		return rdm.NewNackResponse(req, rdm.NRUnsupportedCommandClass)
	}
}

func (r *DummyResponder) handleIdentify(req *rdm.Request) *rdm.Response {
	switch req.CommandClass {
	case rdm.GetCommand:
		if len(req.ParamData) != 0 {
			return rdm.NewNackResponse(req, rdm.NRFormatError)
		}
		var on byte
		if r.Identifying() {
			on = 1
		}
		return rdm.NewAckResponse(req, []byte{on})
	case rdm.SetCommand:
		if len(req.ParamData) != 1 {
			return rdm.NewNackResponse(req, rdm.NRFormatError)
		}
		if req.ParamData[0] > 1 {
			return rdm.NewNackResponse(req, rdm.NRDataOutOfRange)
		}
		r.mu.Lock()
		r.identify = req.ParamData[0] == 1
		r.mu.Unlock()
		return rdm.NewAckResponse(req, nil)
	default:
		return rdm.NewNackResponse(req, rdm.NRUnsupportedCommandClass)
	}
}

func truncateLabel(s string) string {
	if len(s) > rdm.MaxLabelSize {
		return s[:rdm.MaxLabelSize]
	}
	return s
}
