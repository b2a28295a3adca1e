package arc

// Format identifies a container or compression format. The set is closed:
// backends are selected from it once at open time. Format detection is the
// caller's concern; Open takes the format explicitly.
type Format int

// Supported formats.
const (
	FormatUnknown Format = iota

	FormatZip
	FormatRar
	FormatSevenZip
	FormatTar

	FormatTarGz
	FormatTarBz2
	FormatTarXz
	FormatTarZstd
	FormatTarLz4

	FormatGzip
	FormatBzip2
	FormatXz
	FormatZstd
	FormatLz4
	FormatBrotli
)

var formatNames = map[Format]string{
	FormatZip:      "zip",
	FormatRar:      "rar",
	FormatSevenZip: "7z",
	FormatTar:      "tar",
	FormatTarGz:    "tar.gz",
	FormatTarBz2:   "tar.bz2",
	FormatTarXz:    "tar.xz",
	FormatTarZstd:  "tar.zst",
	FormatTarLz4:   "tar.lz4",
	FormatGzip:     "gz",
	FormatBzip2:    "bz2",
	FormatXz:       "xz",
	FormatZstd:     "zst",
	FormatLz4:      "lz4",
	FormatBrotli:   "br",
}

// String returns the conventional short name for the format.
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// IsTar reports whether the format is a tar container, compressed or not.
func (f Format) IsTar() bool {
	switch f {
	case FormatTar, FormatTarGz, FormatTarBz2, FormatTarXz, FormatTarZstd, FormatTarLz4:
		return true
	}
	return false
}

// IsSingleFile reports whether the format is a bare compressed stream
// holding a single file rather than a container.
func (f Format) IsSingleFile() bool {
	switch f {
	case FormatGzip, FormatBzip2, FormatXz, FormatZstd, FormatLz4, FormatBrotli:
		return true
	}
	return false
}

// tarCompression maps a compressed-tar format to the compression applied
// on top of the tar stream. Plain tar maps to FormatUnknown.
func (f Format) tarCompression() Format {
	switch f {
	case FormatTarGz:
		return FormatGzip
	case FormatTarBz2:
		return FormatBzip2
	case FormatTarXz:
		return FormatXz
	case FormatTarZstd:
		return FormatZstd
	case FormatTarLz4:
		return FormatLz4
	}
	return FormatUnknown
}
