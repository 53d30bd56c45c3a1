package contenthash

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithm_KnownVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		alg  Algorithm
		data []byte
		want string
	}{
		{
			name: "sha256 abc",
			alg:  SHA256,
			data: []byte("abc"),
			want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name: "sha256 empty",
			alg:  SHA256,
			data: nil,
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "blake3 empty",
			alg:  BLAKE3,
			data: nil,
			want: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.alg.Sum(tt.data).String())

			streamed, err := tt.alg.SumReader(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, streamed.String())
		})
	}
}

func TestReader_SumMatchesOneShot(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("collate"), 10_000)
	hr := NewReader(bytes.NewReader(data), sha256.New())
	var sink bytes.Buffer
	_, err := sink.ReadFrom(hr)
	require.NoError(t, err)

	assert.Equal(t, Hash(sha256.Sum256(data)), hr.Sum())
	assert.Equal(t, data, sink.Bytes())
}

func TestParse(t *testing.T) {
	t.Parallel()

	want := SHA256.Sum([]byte("abc"))
	hexed := want.String()

	tests := []struct {
		name    string
		in      string
		alg     Algorithm
		wantErr bool
	}{
		{name: "bare hex", in: hexed, alg: SHA256},
		{name: "uppercase hex", in: strings.ToUpper(hexed), alg: SHA256},
		{name: "prefixed", in: "sha256:" + hexed, alg: SHA256},
		{name: "prefixed blake3", in: "blake3:" + hexed, alg: BLAKE3},
		{name: "wrong algorithm", in: "sha256:" + hexed, alg: BLAKE3, wantErr: true},
		{name: "short", in: hexed[:62], alg: SHA256, wantErr: true},
		{name: "long", in: hexed + "00", alg: SHA256, wantErr: true},
		{name: "not hex", in: strings.Repeat("zz", 32), alg: SHA256, wantErr: true},
		{name: "empty", in: "", alg: SHA256, wantErr: true},
		{name: "prefixed short", in: "sha256:abcd", alg: SHA256, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in, tt.alg)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestAlgorithm_Digest(t *testing.T) {
	t.Parallel()

	h := SHA256.Sum([]byte("abc"))
	d := SHA256.Digest(h)
	assert.Equal(t, "sha256:"+h.String(), d.String())
	require.NoError(t, d.Validate())
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	alg, err := ParseAlgorithm("SHA256")
	require.NoError(t, err)
	assert.Equal(t, SHA256, alg)

	alg, err = ParseAlgorithm("blake3")
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, alg)

	_, err = ParseAlgorithm("md5")
	require.Error(t, err)
}
