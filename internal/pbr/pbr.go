// Package pbr implements the persistent block record loader: each
// device stores one fixed-size [header | content] record at LBA 0.
// The header's revision field selects a content serializer from a
// registry, so adding a revision never requires touching this file.
// Per-device read or decode failures are swallowed; the whole scan
// succeeds iff at least one device yields a valid record, mirroring
// pbr_loader.cpp.
package pbr

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// HeaderLength is the fixed byte length of the header region.
const HeaderLength = 32

// TotalPBRSize is the fixed byte length of the whole [header|content]
// record read from each device.
const TotalPBRSize = 4096

// Header is the fixed-layout leading region of a PBR record.
type Header struct {
	Revision   uint32
	ArrayName  string
	DeviceUUID string
}

// ArrayTemplateEntry is one device's decoded content descriptor,
// appended to the loader's output list on success.
type ArrayTemplateEntry struct {
	DeviceName string
	Revision   uint32
	Content    map[string]string
}

// HeaderSerializer decodes the fixed header region.
type HeaderSerializer interface {
	Deserialize(raw []byte) (Header, error)
}

// ContentSerializer decodes the content region for one header
// revision. ContentStartOffset reports where, within the record, the
// content region begins for that revision (revisions may reserve a
// different amount of header padding).
type ContentSerializer interface {
	ContentStartOffset() int
	Deserialize(deviceName string, raw []byte) (ArrayTemplateEntry, error)
}

// Reader reads the fixed-size raw PBR record from one device.
type Reader interface {
	ReadPBR(deviceName string) ([]byte, error)
}

// registry maps a header revision to the serializer that understands
// its content layout. Registering a new revision never requires
// editing Load.
type registry struct {
	serializers map[uint32]ContentSerializer
}

func newRegistry() *registry { return &registry{serializers: make(map[uint32]ContentSerializer)} }

func (r *registry) Register(revision uint32, s ContentSerializer) { r.serializers[revision] = s }

func (r *registry) Get(revision uint32) (ContentSerializer, bool) {
	s, ok := r.serializers[revision]
	return s, ok
}

// Loader reads and decodes a PBR record from every device in its
// list, accumulating valid ArrayTemplateEntry values.
type Loader struct {
	headerSerializer HeaderSerializer
	reader           Reader
	registry         *registry
	devices          []string
}

// NewLoader builds a Loader over the given devices, header decoder,
// and raw reader. Content serializers are registered afterward via
// RegisterContentSerializer.
func NewLoader(headerSerializer HeaderSerializer, reader Reader, devices []string) *Loader {
	return &Loader{
		headerSerializer: headerSerializer,
		reader:           reader,
		registry:         newRegistry(),
		devices:          devices,
	}
}

// RegisterContentSerializer adds (or replaces) the serializer used
// for header revision `revision`.
func (l *Loader) RegisterContentSerializer(revision uint32, s ContentSerializer) {
	l.registry.Register(revision, s)
}

// Load scans every device and returns the ArrayTemplateEntry for each
// one that yields a valid header and content. A per-device failure is
// logged and skipped; Load only errors if the resulting list is empty.
func (l *Loader) Load() ([]ArrayTemplateEntry, error) {
	var out []ArrayTemplateEntry
	for _, dev := range l.devices {
		entry, ok := l.loadOne(dev)
		if ok {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pbr: no valid PBR found across %d device(s)", len(l.devices))
	}
	return out, nil
}

func (l *Loader) loadOne(dev string) (ArrayTemplateEntry, bool) {
	raw, err := l.reader.ReadPBR(dev)
	if err != nil {
		logrus.Warnf("pbr: read failed for device %s: %v", dev, err)
		return ArrayTemplateEntry{}, false
	}
	if len(raw) < HeaderLength {
		logrus.Warnf("pbr: device %s returned short record (%d bytes)", dev, len(raw))
		return ArrayTemplateEntry{}, false
	}

	header, err := l.headerSerializer.Deserialize(raw[:HeaderLength])
	if err != nil {
		logrus.Warnf("pbr: header decode failed for device %s: %v", dev, err)
		return ArrayTemplateEntry{}, false
	}

	serializer, ok := l.registry.Get(header.Revision)
	if !ok {
		logrus.Warnf("pbr: device %s has unknown header revision %d", dev, header.Revision)
		return ArrayTemplateEntry{}, false
	}

	start := serializer.ContentStartOffset()
	if start >= len(raw) {
		logrus.Warnf("pbr: device %s content offset %d exceeds record size %d", dev, start, len(raw))
		return ArrayTemplateEntry{}, false
	}

	content, err := serializer.Deserialize(dev, raw[start:])
	if err != nil {
		logrus.Warnf("pbr: content decode failed for device %s: %v", dev, err)
		return ArrayTemplateEntry{}, false
	}
	return content, true
}
