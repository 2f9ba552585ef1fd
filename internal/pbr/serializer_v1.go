package pbr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Revision1 is the first (and currently only) content layout this
// loader understands. Its header is a fixed binary prefix; its
// content region is YAML.
const Revision1 uint32 = 1

// BinaryHeaderSerializer decodes the fixed-layout binary header used
// by every revision: a uint32 revision tag followed by two
// null-padded fixed-width string fields.
type BinaryHeaderSerializer struct{}

const (
	arrayNameFieldLen  = 16
	deviceUUIDFieldLen = 12
)

func (BinaryHeaderSerializer) Deserialize(raw []byte) (Header, error) {
	if len(raw) < HeaderLength {
		return Header{}, fmt.Errorf("pbr: header region too short: %d < %d", len(raw), HeaderLength)
	}
	revision := binary.LittleEndian.Uint32(raw[0:4])
	arrayName := trimNulls(raw[4 : 4+arrayNameFieldLen])
	deviceUUID := trimNulls(raw[4+arrayNameFieldLen : 4+arrayNameFieldLen+deviceUUIDFieldLen])
	return Header{Revision: revision, ArrayName: arrayName, DeviceUUID: deviceUUID}, nil
}

func trimNulls(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b)
	}
	return string(b[:i])
}

// YAMLContentSerializerV1 decodes the content region of a revision-1
// record as YAML into a generic string map.
type YAMLContentSerializerV1 struct{}

func (YAMLContentSerializerV1) ContentStartOffset() int { return HeaderLength }

func (YAMLContentSerializerV1) Deserialize(deviceName string, raw []byte) (ArrayTemplateEntry, error) {
	trimmed := bytes.TrimRight(raw, "\x00")
	var content map[string]string
	if err := yaml.Unmarshal(trimmed, &content); err != nil {
		return ArrayTemplateEntry{}, fmt.Errorf("pbr: content YAML decode failed: %w", err)
	}
	return ArrayTemplateEntry{DeviceName: deviceName, Revision: Revision1, Content: content}, nil
}
