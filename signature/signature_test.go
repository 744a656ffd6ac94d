package signature

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proofJSON = `{
	"proofPoints": {"a": ["1", "2", "1"], "b": [["3", "4"], ["5", "6"], ["1", "0"]], "c": ["7", "8", "1"]},
	"issBase64Details": {"value": "yJpc3MiOiJodHRwczovL2FjY291bnRzLmdvb2dsZS5jb20iLC", "indexMod4": 1},
	"headerBase64": "eyJhbGciOiJSUzI1NiJ9",
	"ignored": {"x": 1}
}`

func str(v string) []byte {
	return append([]byte{byte(len(v))}, v...)
}

func TestAssemble_Bytes(t *testing.T) {
	seed := strings.Repeat("9", 200)
	userSig := []byte{0x00, 0xaa, 0xbb}

	out, err := Assemble([]byte(proofJSON), 42, seed, base64.StdEncoding.EncodeToString(userSig))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)

	want := []byte{FlagZkLogin}
	want = append(want, 0x03)
	want = append(append(append(want, str("1")...), str("2")...), str("1")...)
	want = append(want, 0x03)
	for _, row := range [][2]string{{"3", "4"}, {"5", "6"}, {"1", "0"}} {
		want = append(append(append(want, 0x02), str(row[0])...), str(row[1])...)
	}
	want = append(want, 0x03)
	want = append(append(append(want, str("7")...), str("8")...), str("1")...)
	want = append(want, str("yJpc3MiOiJodHRwczovL2FjY291bnRzLmdvb2dsZS5jb20iLC")...)
	want = append(want, 0x01)
	want = append(want, str("eyJhbGciOiJSUzI1NiJ9")...)
	want = append(want, 0xc8, 0x01)
	want = append(want, seed...)
	want = binary.LittleEndian.AppendUint64(want, 42)
	want = append(want, 0x03)
	want = append(want, userSig...)

	assert.Equal(t, want, raw)
}

func TestAssemble_Layout(t *testing.T) {
	userSig := base64.StdEncoding.EncodeToString([]byte{0x00, 0xaa, 0xbb})

	out, err := Assemble([]byte(proofJSON), 42, "123456", userSig)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)

	assert.Equal(t, byte(FlagZkLogin), raw[0])
	// a: 3 strings
	assert.Equal(t, []byte{0x03, 0x01, '1', 0x01, '2', 0x01, '1'}, raw[1:8])
	// trailer: max epoch then the length prefixed user signature
	tail := raw[len(raw)-12:]
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(tail[:8]))
	assert.Equal(t, []byte{0x03, 0x00, 0xaa, 0xbb}, tail[8:])

	assert.Contains(t, string(raw), "eyJhbGciOiJSUzI1NiJ9")
	assert.Contains(t, string(raw), "\x06123456")
}

func TestAssemble_Deterministic(t *testing.T) {
	userSig := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	a, err := Assemble([]byte(proofJSON), 7, "1", userSig)
	require.NoError(t, err)
	b, err := Assemble([]byte(proofJSON), 7, "1", userSig)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Assemble([]byte(proofJSON), 8, "1", userSig)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestAssemble_Errors(t *testing.T) {
	userSig := base64.StdEncoding.EncodeToString([]byte{1})

	_, err := Assemble([]byte(`not json`), 1, "1", userSig)
	assert.ErrorIs(t, err, ErrMalformedProof)

	_, err = Assemble([]byte(`{"proofPoints":{}}`), 1, "1", userSig)
	assert.ErrorIs(t, err, ErrMalformedProof)

	noHeader := strings.Replace(proofJSON, `"headerBase64": "eyJhbGciOiJSUzI1NiJ9",`, "", 1)
	_, err = Assemble([]byte(noHeader), 1, "1", userSig)
	assert.ErrorIs(t, err, ErrMalformedProof)

	_, err = Assemble([]byte(proofJSON), 1, "", userSig)
	assert.Error(t, err)

	_, err = Assemble([]byte(proofJSON), 1, "1", "%%%")
	assert.Error(t, err)
}
