package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"

	// ContentTypeSealed marks a sealed body. Its "codec" parameter names the
	// content type of the body before sealing.
	ContentTypeSealed = "application/vnd.typedrpc.sealed"
)

// Codec translates between JSON and a wire encoding.
//
// Envelopes are always built and parsed as JSON; a Codec only changes how
// those bytes travel.
type Codec interface {
	// ContentType is the media type of the wire encoding.
	ContentType() string
	// Encode converts JSON to the wire encoding.
	Encode(jsonData []byte) ([]byte, error)
	// Decode converts the wire encoding to JSON.
	Decode(wire []byte) ([]byte, error)
}

// JSON is the identity codec.
var JSON Codec = jsonCodec{}

// CBOR encodes envelopes as CBOR (RFC 8949) using deterministic encoding.
var CBOR Codec = newCBORCodec()

type jsonCodec struct{}

func (jsonCodec) ContentType() string                    { return ContentTypeJSON }
func (jsonCodec) Encode(jsonData []byte) ([]byte, error) { return jsonData, nil }
func (jsonCodec) Decode(wire []byte) ([]byte, error)     { return wire, nil }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() *cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transport: cbor encoder: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("transport: cbor decoder: " + err.Error())
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) ContentType() string { return ContentTypeCBOR }

func (c *cborCodec) Encode(jsonData []byte) ([]byte, error) {
	d := json.NewDecoder(bytes.NewReader(jsonData))
	d.UseNumber()
	var v interface{}
	if err := d.Decode(&v); err != nil {
		return nil, fmt.Errorf("transport: cbor encode: %w", err)
	}
	return c.enc.Marshal(fromJSONNumbers(v))
}

func (c *cborCodec) Decode(wire []byte) ([]byte, error) {
	var v interface{}
	if err := c.dec.Unmarshal(wire, &v); err != nil {
		return nil, fmt.Errorf("transport: cbor decode: %w", err)
	}
	return json.Marshal(v)
}

// fromJSONNumbers replaces json.Number values so that integers stay integers
// in CBOR instead of becoming floats or text.
func fromJSONNumbers(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]interface{}:
		for k, e := range x {
			x[k] = fromJSONNumbers(e)
		}
		return x
	case []interface{}:
		for i, e := range x {
			x[i] = fromJSONNumbers(e)
		}
		return x
	}
	return v
}

// CodecFor returns the codec for a media type, ignoring parameters.
func CodecFor(contentType string) (Codec, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	switch mt {
	case ContentTypeJSON:
		return JSON, true
	case ContentTypeCBOR:
		return CBOR, true
	}
	return nil, false
}

// SealedContentType returns the media type of a sealed body whose plaintext
// has the given codec.
func SealedContentType(c Codec) string {
	return mime.FormatMediaType(ContentTypeSealed, map[string]string{"codec": c.ContentType()})
}

// UnsealedCodec returns the codec named by a sealed media type.
func UnsealedCodec(contentType string) (Codec, bool) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt != ContentTypeSealed {
		return nil, false
	}
	return CodecFor(params["codec"])
}
