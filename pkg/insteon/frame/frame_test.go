package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

func TestAssembleAppliesDefaultsAndOverrides(t *testing.T) {
	tmpl := schema.OutgoingCommands["write_aldb"]
	target := address.New(0x1A, 0x2B, 0x3C)

	out := Assemble(tmpl, map[string]byte{
		"msb":        0x0F,
		"lsb":        0xF8,
		"link_flags": 0xA2,
		"group":      0x01,
	}, target)

	assert.Equal(t, byte(0x2F), out.Cmd1)
	assert.Equal(t, byte(0x02), out.Usr[1]) // write_flag default
	assert.Equal(t, byte(0x0F), out.Usr[2]) // msb
	assert.Equal(t, byte(0xF8), out.Usr[3]) // lsb
	assert.Equal(t, byte(0xA2), out.Usr[5]) // link_flags
	assert.Equal(t, byte(0x01), out.Usr[6]) // group
	assert.Equal(t, target, out.Target)
}

func TestAssembleIgnoresUnknownOverride(t *testing.T) {
	tmpl := schema.OutgoingCommands["on"]
	out := Assemble(tmpl, map[string]byte{"bogus": 0x99}, address.Zero)
	assert.Equal(t, byte(0xFF), out.Cmd2)
}

func TestToWireThenParseRoundTrips(t *testing.T) {
	tmpl := schema.OutgoingCommands["light_status_request"]
	target := address.New(0x1A, 0x2B, 0x3C)
	out := Assemble(tmpl, nil, target)
	out.Type = schema.MsgDirect

	raw := ToWire(out, address.New(0xAA, 0xBB, 0xCC), 3)
	in, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, target, in.ToAddr)
	assert.Equal(t, schema.LenStandard, in.Length)
	assert.Equal(t, out.Cmd1, in.Cmd1)
	assert.Equal(t, out.Cmd2, in.Cmd2)
	assert.Equal(t, byte(3), in.MaxHops)
	assert.Equal(t, byte(3), in.HopsLeft)
	assert.Equal(t, byte(0), in.HopsUsed())
}

func TestParseExtendedCarriesUsrBytes(t *testing.T) {
	tmpl := schema.OutgoingCommands["write_aldb"]
	target := address.New(0x1A, 0x2B, 0x3C)
	out := Assemble(tmpl, map[string]byte{"msb": 0x0F, "lsb": 0xF8}, target)

	raw := ToWire(out, address.New(0xAA, 0xBB, 0xCC), 2)
	in, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, schema.LenExtended, in.Length)
	v, ok := in.ByteByName("usr_3")
	require.True(t, ok)
	assert.Equal(t, byte(0x0F), v)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, err := Parse([]byte{0x02, 0x50, 0x01})
	assert.Error(t, err)
}

func TestParseRejectsUnknownTypeCode(t *testing.T) {
	raw := make([]byte, 11)
	raw[1] = 0xFF
	_, err := Parse(raw)
	assert.Error(t, err)
}

func TestDedupSignatureMasksHopNibble(t *testing.T) {
	tmpl := schema.OutgoingCommands["on"]
	out := Assemble(tmpl, nil, address.New(0x1A, 0x2B, 0x3C))

	raw1 := ToWire(out, address.New(0xAA, 0xBB, 0xCC), 3)
	in1, err := Parse(raw1)
	require.NoError(t, err)

	// Same frame, arriving after one more hop (hopsLeft differs) should
	// still produce the same dedup signature.
	raw2 := make([]byte, len(raw1))
	copy(raw2, raw1)
	raw2[8] = (raw2[8] &^ byte(0x0F)) | 0x01 // change hopsLeft/maxHops bits only
	in2, err := Parse(raw2)
	require.NoError(t, err)

	assert.Equal(t, in1.DedupSignature(), in2.DedupSignature())
}
