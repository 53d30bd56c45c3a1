package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// FixturePayload is the member content of the fixed archives below.
const FixturePayload = "deeply nested rom payload"

// TarBz2 is a bzip2-compressed ustar archive holding one member, game.bin,
// whose content is FixturePayload. No bzip2 encoder is available to build it
// at test time.
var TarBz2 = []byte("" +
	"\x42\x5a\x68\x39\x31\x41\x59\x26\x53\x59\xe5\x9a\x77\x1f\x00\x00" +
	"\x78\xdb\x80\xca\x20\x40\x01\x7f\x80\x00\x40\x76\xa7\xde\x20\x08" +
	"\x08\x20\x00\x75\x15\x36\x50\x68\xf5\x01\xa3\xf5\x43\x69\x31\x01" +
	"\x25\x10\xd3\x46\x80\x00\x01\xa4\x77\x78\xd4\x20\xca\x54\x21\x10" +
	"\xea\xc7\x93\xd6\xc7\x20\x43\x13\x0f\xb9\xa3\x6b\x5c\x27\x41\xa0" +
	"\x03\xa9\x1a\x6c\x79\x03\xd8\xac\x60\x68\xd0\xae\x73\x89\x9e\x2d" +
	"\x27\x08\xbf\xe1\x68\xad\x63\x28\x26\x49\x35\xa4\x89\x26\x6c\x64" +
	"\x89\x19\xdd\x9a\x48\x3f\x17\x72\x45\x38\x50\x90\xe5\x9a\x77\x1f")

// Xz compresses data as an xz stream.
func Xz(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// 7z property IDs.
const (
	sevenZipEnd            = 0x00
	sevenZipHeader         = 0x01
	sevenZipMainStreams    = 0x04
	sevenZipFilesInfo      = 0x05
	sevenZipPackInfo       = 0x06
	sevenZipUnpackInfo     = 0x07
	sevenZipSubStreams     = 0x08
	sevenZipSize           = 0x09
	sevenZipCRC            = 0x0a
	sevenZipFolder         = 0x0b
	sevenZipCodersUnpack   = 0x0c
	sevenZipNumUnpackStrms = 0x0d
	sevenZipName           = 0x11
)

// SevenZip builds a 7z archive holding files in one folder with the copy
// method. Every file must be non-empty.
func SevenZip(t testing.TB, files ...File) []byte {
	t.Helper()
	require.NotEmpty(t, files)

	var packed bytes.Buffer
	for _, f := range files {
		require.NotEmpty(t, f.Data, f.Name)
		packed.Write(f.Data)
	}

	var hdr bytes.Buffer
	hdr.WriteByte(sevenZipHeader)
	hdr.WriteByte(sevenZipMainStreams)

	hdr.WriteByte(sevenZipPackInfo)
	put7zNumber(&hdr, 0)
	put7zNumber(&hdr, 1)
	hdr.WriteByte(sevenZipSize)
	put7zNumber(&hdr, uint64(packed.Len()))
	hdr.WriteByte(sevenZipEnd)

	hdr.WriteByte(sevenZipUnpackInfo)
	hdr.WriteByte(sevenZipFolder)
	put7zNumber(&hdr, 1)
	hdr.WriteByte(0) // not external
	put7zNumber(&hdr, 1)
	hdr.WriteByte(0x01) // simple coder, one-byte ID
	hdr.WriteByte(0x00) // copy
	hdr.WriteByte(sevenZipCodersUnpack)
	put7zNumber(&hdr, uint64(packed.Len()))
	hdr.WriteByte(sevenZipEnd)

	hdr.WriteByte(sevenZipSubStreams)
	hdr.WriteByte(sevenZipNumUnpackStrms)
	put7zNumber(&hdr, uint64(len(files)))
	if len(files) > 1 {
		hdr.WriteByte(sevenZipSize)
		for _, f := range files[:len(files)-1] {
			put7zNumber(&hdr, uint64(len(f.Data)))
		}
	}
	hdr.WriteByte(sevenZipCRC)
	hdr.WriteByte(1) // all defined
	for _, f := range files {
		hdr.Write(binary.LittleEndian.AppendUint32(nil, crc32.ChecksumIEEE(f.Data)))
	}
	hdr.WriteByte(sevenZipEnd)
	hdr.WriteByte(sevenZipEnd)

	var names bytes.Buffer
	for _, f := range files {
		for _, u := range utf16.Encode([]rune(f.Name)) {
			names.Write(binary.LittleEndian.AppendUint16(nil, u))
		}
		names.Write([]byte{0, 0})
	}
	hdr.WriteByte(sevenZipFilesInfo)
	put7zNumber(&hdr, uint64(len(files)))
	hdr.WriteByte(sevenZipName)
	put7zNumber(&hdr, uint64(1+names.Len()))
	hdr.WriteByte(0) // not external
	hdr.Write(names.Bytes())
	hdr.WriteByte(sevenZipEnd)
	hdr.WriteByte(sevenZipEnd)

	start := make([]byte, 0, 20)
	start = binary.LittleEndian.AppendUint64(start, uint64(packed.Len()))
	start = binary.LittleEndian.AppendUint64(start, uint64(hdr.Len()))
	start = binary.LittleEndian.AppendUint32(start, crc32.ChecksumIEEE(hdr.Bytes()))

	var out bytes.Buffer
	out.Write([]byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c, 0x00, 0x04})
	out.Write(binary.LittleEndian.AppendUint32(nil, crc32.ChecksumIEEE(start)))
	out.Write(start)
	out.Write(packed.Bytes())
	out.Write(hdr.Bytes())
	return out.Bytes()
}

// put7zNumber writes v in the 7z variable-length encoding: the count of
// leading one bits in the first byte is the number of little-endian bytes
// that follow, and the first byte's remaining bits hold the high part.
func put7zNumber(buf *bytes.Buffer, v uint64) {
	for n := range 8 {
		if v < 1<<(7*(n+1)) {
			first := byte(0xff)<<(8-n) | byte(v>>(8*n))
			buf.WriteByte(first)
			for i := range n {
				buf.WriteByte(byte(v >> (8 * i)))
			}
			return
		}
	}
	buf.WriteByte(0xff)
	buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

// RAR 1.5 block types and flags.
const (
	rarBlockMain    = 0x73
	rarBlockFile    = 0x74
	rarBlockEnd     = 0x7b
	rarLongBlock    = 0x8000
	rarHostUnix     = 3
	rarVersion29    = 29
	rarMethodStore  = 0x30
	rarDOSTime2024  = 0x58210000
	rarUnixRegular  = 0o100644
	rarMarkerBlock  = "Rar!\x1a\x07\x00"
	rarMainReserved = 6
)

// Rar builds a RAR 1.5 (RAR 4.x) archive holding files stored without
// compression.
func Rar(t testing.TB, files ...File) []byte {
	t.Helper()

	var out bytes.Buffer
	out.WriteString(rarMarkerBlock)
	writeRarBlock(&out, rarBlockMain, 0, make([]byte, rarMainReserved))
	for _, f := range files {
		require.LessOrEqual(t, len(f.Data), 1<<31, f.Name)
		var body []byte
		body = binary.LittleEndian.AppendUint32(body, uint32(len(f.Data))) // packed size
		body = binary.LittleEndian.AppendUint32(body, uint32(len(f.Data))) // unpacked size
		body = append(body, rarHostUnix)
		body = binary.LittleEndian.AppendUint32(body, crc32.ChecksumIEEE(f.Data))
		body = binary.LittleEndian.AppendUint32(body, rarDOSTime2024)
		body = append(body, rarVersion29, rarMethodStore)
		body = binary.LittleEndian.AppendUint16(body, uint16(len(f.Name)))
		body = binary.LittleEndian.AppendUint32(body, rarUnixRegular)
		body = append(body, f.Name...)
		writeRarBlock(&out, rarBlockFile, rarLongBlock, body)
		out.Write(f.Data)
	}
	writeRarBlock(&out, rarBlockEnd, 0, nil)
	return out.Bytes()
}

// writeRarBlock writes a block header: CRC16, type, flags, size, body.
func writeRarBlock(out *bytes.Buffer, typ byte, flags uint16, body []byte) {
	h := []byte{typ}
	h = binary.LittleEndian.AppendUint16(h, flags)
	h = binary.LittleEndian.AppendUint16(h, uint16(7+len(body)))
	h = append(h, body...)
	out.Write(binary.LittleEndian.AppendUint16(nil, uint16(crc32.ChecksumIEEE(h))))
	out.Write(h)
}
