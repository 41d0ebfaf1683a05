package policy

import "bytes"

// compressedMagics are the signatures of container formats it makes no
// sense to compress again. The probe inspects content, never the filename.
var compressedMagics = [][]byte{
	{0x1F, 0x8B},                         // gzip
	{0x1F, 0x9D},                         // compress
	{'B', 'Z', 'h'},                      // bzip2
	{'P', 'K', 0x03, 0x04},               // zip
	{0xFD, '7', 'z', 'X', 'Z', 0x00},     // xz
	{0x28, 0xB5, 0x2F, 0xFD},             // zstd
	{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C},   // 7z
	{'R', 'a', 'r', '!', 0x1A, 0x07},     // rar
	{0xFF, 0xD8, 0xFF},                   // jpeg
	{0x89, 'P', 'N', 'G', 0x0D, 0x0A},    // png
	{'O', 'g', 'g', 'S'},                 // ogg
	{0x00, 0x00, 0x01, 0xBA},             // mpeg
}

// ProbeCompressed reports whether the first bytes of the input look like an
// already-compressed format.
func ProbeCompressed(head []byte) bool {
	for _, magic := range compressedMagics {
		if bytes.HasPrefix(head, magic) {
			return true
		}
	}

	return false
}

// ProbeLen is how many leading bytes ProbeCompressed wants to see.
const ProbeLen = 6
