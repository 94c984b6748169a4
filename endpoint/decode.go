package endpoint

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// DefaultBodyLimit is the body size limit used when a body field has no
// maxLength tag.
const DefaultBodyLimit = 32 << 20

// Unmarshal populates dst, a non-nil pointer to a struct, from the request.
//
// Supported struct tags:
//   - `body:""` on a []byte or string field: the request body
//   - `header:"Name"` on a string field: the first value of a header
//   - `maxLength:"n"` on a body field: body size limit in bytes (0 for none)
//
// A body over its limit is rejected with 413. Untagged fields are left
// unchanged.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}
	root := v.Elem()
	if root.Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: unsupported params type %s", root.Type()))
	}

	t := root.Type()
	bodyRead := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := root.Field(i)

		if name, ok := sf.Tag.Lookup("header"); ok {
			if fv.Kind() != reflect.String {
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: header field %s must be a string", sf.Name))
			}
			if name == "" {
				name = sf.Name
			}
			fv.SetString(r.Header.Get(name))
			continue
		}

		if _, ok := sf.Tag.Lookup("body"); ok {
			if bodyRead {
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields"))
			}
			bodyRead = true
			limit, err := bodyLimit(sf)
			if err != nil {
				return err
			}
			b, err := readBody(r, limit)
			if err != nil {
				return err
			}
			switch {
			case fv.Kind() == reflect.String:
				fv.SetString(string(b))
			case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8:
				fv.SetBytes(b)
			default:
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: body field %s must be []byte or string", sf.Name))
			}
		}
	}
	return nil
}

func bodyLimit(sf reflect.StructField) (int64, error) {
	s, ok := sf.Tag.Lookup("maxLength")
	if !ok {
		return DefaultBodyLimit, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: invalid maxLength %q on %s", s, sf.Name))
	}
	return n, nil
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	reader := io.Reader(r.Body)
	if limit > 0 {
		reader = io.LimitReader(r.Body, limit+1)
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	if limit > 0 && int64(len(b)) > limit {
		return nil, Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body exceeds %d bytes", limit))
	}
	return b, nil
}
