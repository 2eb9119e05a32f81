// Package codec encodes record payloads for key/value storage.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/text/unicode/norm"
)

// Codec converts records to and from their stored byte form.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Names of the built-in codecs.
const (
	NameCBOR = "cbor"
	NameJSON = "json"
)

// ByName returns the built-in codec registered under name.
func ByName(name string) (Codec, error) {
	switch name {
	case NameCBOR, "":
		return NewCBOR(), nil
	case NameJSON:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// CBOR is a binary codec using core deterministic encoding, so equal
// records always produce identical bytes.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR creates the CBOR codec.
func NewCBOR() *CBOR {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	// Strings are decoded as stored, so text the encoder accepted always
	// reads back byte for byte.
	dec, err := cbor.DecOptions{UTF8: cbor.UTF8DecodeInvalid}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
	return &CBOR{enc: enc, dec: dec}
}

func (c *CBOR) Name() string { return NameCBOR }

func (c *CBOR) Marshal(v any) ([]byte, error) {
	data, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal: %w", err)
	}
	return data, nil
}

func (c *CBOR) Unmarshal(data []byte, v any) error {
	if err := c.dec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor unmarshal: %w", err)
	}
	return nil
}

// JSON is a text codec. HTML escaping is disabled so payload strings are
// stored as written. Strings holding invalid UTF-8 are rejected, since
// encoding/json would replace the bad bytes with U+FFFD.
type JSON struct{}

func (JSON) Name() string { return NameJSON }

func (JSON) Marshal(v any) ([]byte, error) {
	if err := checkUTF8(reflect.ValueOf(v)); err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	// Encoder adds a trailing newline
	return bytes.TrimSpace(buf.Bytes()), nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// ErrInvalidUTF8 is returned when a string cannot be stored losslessly.
var ErrInvalidUTF8 = errors.New("string is not valid UTF-8")

// checkUTF8 walks v and fails on the first string that is not valid UTF-8.
// []byte payloads are base64 encoded by encoding/json and are skipped.
func checkUTF8(v reflect.Value) error {
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: %q", ErrInvalidUTF8, v.String())
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return checkUTF8(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if err := checkUTF8(v.Field(i)); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkUTF8(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkUTF8(iter.Key()); err != nil {
				return err
			}
			if err := checkUTF8(iter.Value()); err != nil {
				return err
			}
		}
	}
	return nil
}

// NormalizeKey returns the NFC form of a string key, so canonically
// equivalent spellings address the same record.
func NormalizeKey(key string) string {
	return norm.NFC.String(key)
}
