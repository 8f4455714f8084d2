// Package codec provides a pluggable JSON codec with exactly two
// implementations: the standard library and json-iterator. The codec is
// selected once at construction time; callers never branch on codec
// availability in hot paths.
package codec

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// Codec serializes and deserializes values for snapshot export and
// transport payloads.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Name identifies the implementation, for logging and diagnostics.
	Name() string
}

// Std is the encoding/json implementation.
type Std struct{}

// Marshal implements Codec.
func (Std) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (Std) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name implements Codec.
func (Std) Name() string { return "std" }

// Fast is the json-iterator implementation.
type Fast struct{}

var fastAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal implements Codec.
func (Fast) Marshal(v any) ([]byte, error) { return fastAPI.Marshal(v) }

// Unmarshal implements Codec.
func (Fast) Unmarshal(data []byte, v any) error { return fastAPI.Unmarshal(data, v) }

// Name implements Codec.
func (Fast) Name() string { return "jsoniter" }

// ForName returns the codec registered under name ("std" or "jsoniter").
// Unknown names fall back to Std.
func ForName(name string) Codec {
	if name == (Fast{}).Name() {
		return Fast{}
	}
	return Std{}
}
