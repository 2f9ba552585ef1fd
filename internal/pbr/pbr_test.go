package pbr_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthya1104/ft-raid-core/internal/pbr"
)

type fakeReader struct {
	records map[string][]byte
	errs    map[string]error
}

func (f *fakeReader) ReadPBR(dev string) ([]byte, error) {
	if err, ok := f.errs[dev]; ok {
		return nil, err
	}
	return f.records[dev], nil
}

func buildRecord(t *testing.T, revision uint32, arrayName, deviceUUID string, contentYAML string) []byte {
	t.Helper()
	raw := make([]byte, pbr.TotalPBRSize)
	binary.LittleEndian.PutUint32(raw[0:4], revision)
	copy(raw[4:20], arrayName)
	copy(raw[20:32], deviceUUID)
	copy(raw[pbr.HeaderLength:], contentYAML)
	return raw
}

func TestLoader_AllDevicesValid(t *testing.T) {
	reader := &fakeReader{records: map[string][]byte{
		"dev0": buildRecord(t, pbr.Revision1, "array0", "uuid-0", "role: data\nsocket: \"0\"\n"),
		"dev1": buildRecord(t, pbr.Revision1, "array0", "uuid-1", "role: parity\nsocket: \"1\"\n"),
	}}

	loader := pbr.NewLoader(pbr.BinaryHeaderSerializer{}, reader, []string{"dev0", "dev1"})
	loader.RegisterContentSerializer(pbr.Revision1, pbr.YAMLContentSerializerV1{})

	entries, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "data", entries[0].Content["role"])
	assert.Equal(t, "parity", entries[1].Content["role"])
}

func TestLoader_PartialFailure_StillSucceeds(t *testing.T) {
	reader := &fakeReader{
		records: map[string][]byte{
			"good": buildRecord(t, pbr.Revision1, "array0", "uuid-good", "role: data\n"),
		},
		errs: map[string]error{
			"bad": assertError("disk read failure"),
		},
	}

	loader := pbr.NewLoader(pbr.BinaryHeaderSerializer{}, reader, []string{"good", "bad"})
	loader.RegisterContentSerializer(pbr.Revision1, pbr.YAMLContentSerializerV1{})

	entries, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].DeviceName)
}

func TestLoader_AllDevicesFail_ReturnsError(t *testing.T) {
	reader := &fakeReader{errs: map[string]error{
		"dev0": assertError("bad disk"),
		"dev1": assertError("bad disk"),
	}}

	loader := pbr.NewLoader(pbr.BinaryHeaderSerializer{}, reader, []string{"dev0", "dev1"})
	loader.RegisterContentSerializer(pbr.Revision1, pbr.YAMLContentSerializerV1{})

	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoader_UnknownRevision_SkippedNotFatal(t *testing.T) {
	reader := &fakeReader{records: map[string][]byte{
		"dev0": buildRecord(t, 99, "array0", "uuid-0", "role: data\n"),
		"dev1": buildRecord(t, pbr.Revision1, "array0", "uuid-1", "role: data\n"),
	}}

	loader := pbr.NewLoader(pbr.BinaryHeaderSerializer{}, reader, []string{"dev0", "dev1"})
	loader.RegisterContentSerializer(pbr.Revision1, pbr.YAMLContentSerializerV1{})

	entries, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dev1", entries[0].DeviceName)
}

type simpleErr string

func (e simpleErr) Error() string   { return string(e) }
func assertError(msg string) error { return simpleErr(msg) }
