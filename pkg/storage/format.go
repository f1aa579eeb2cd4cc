package storage

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "GODM"
	// Current version
	FormatVersion = 1
	// File extension for snapshot files
	FileExtension = ".godm"

	// FlagCompressed marks an lz4 block compressed payload
	FlagCompressed uint8 = 1 << 0
)

// FileHeader represents the header of a snapshot file
type FileHeader struct {
	Magic    [4]byte // "GODM"
	Version  uint8   // Format version
	Flags    uint8   // FlagCompressed
	Reserved [2]byte // Reserved for future use
	RawSize  uint32  // Size of the uncompressed payload
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, flags uint8, rawSize int) error {
	if rawSize < 0 || uint64(rawSize) > uint64(^uint32(0)) {
		return fmt.Errorf("payload of %d bytes is too large for a snapshot", rawSize)
	}
	header := FileHeader{
		Magic:   [4]byte{'G', 'O', 'D', 'M'},
		Version: FormatVersion,
		Flags:   flags,
		RawSize: uint32(rawSize),
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Validate magic bytes
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	// Validate version
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// StorageData represents the snapshot payload
type StorageData struct {
	Name        string                              `msgpack:"name"`
	Collections map[string][]map[string]interface{} `msgpack:"collections"`
	Indexes     map[string][]IndexSnapshot          `msgpack:"indexes,omitempty"`
}

// IndexSnapshot is the persisted description of an index
type IndexSnapshot struct {
	Name    string                 `msgpack:"name"`
	Fields  []string               `msgpack:"fields"`
	Orders  []interface{}          `msgpack:"orders"`
	Unique  bool                   `msgpack:"unique"`
	Options map[string]interface{} `msgpack:"options,omitempty"`
}

// NewStorageData creates a new empty storage data structure
func NewStorageData(name string) *StorageData {
	return &StorageData{
		Name:        name,
		Collections: make(map[string][]map[string]interface{}),
		Indexes:     make(map[string][]IndexSnapshot),
	}
}
