package buildstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// SerializedVersion is the on-disk schema version written by Encode.
const SerializedVersion = 1

// ErrUnsupportedVersion is returned by Decode for files written with another
// schema version. Readers treat it as a cache miss.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

type envelope struct {
	SerializedVersion int `json:"serializedVersion"`
	*BuildStateFile
}

// Marshal encodes f with the current schema version.
func Marshal(f *BuildStateFile) ([]byte, error) {
	return json.MarshalIndent(envelope{SerializedVersion: SerializedVersion, BuildStateFile: f}, "", "  ")
}

// Unmarshal decodes a state file. A version mismatch yields
// ErrUnsupportedVersion.
func Unmarshal(data []byte) (*BuildStateFile, error) {
	var header struct {
		SerializedVersion int `json:"serializedVersion"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("unmarshal state file: %w", err)
	}
	if header.SerializedVersion != SerializedVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.SerializedVersion)
	}
	env := envelope{BuildStateFile: &BuildStateFile{}}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal state file: %w", err)
	}
	f := env.BuildStateFile
	if f.Outputs == nil {
		f.Outputs = make(map[string]*ProjectOutputSnapshot)
	}
	return f, nil
}

// Encode writes f to w.
func Encode(w io.Writer, f *BuildStateFile) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode reads one state file from r.
func Decode(r io.Reader) (*BuildStateFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
