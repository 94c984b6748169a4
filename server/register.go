package server

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/mnehpets/typedrpc/jsonrpc"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// method is a registered RPC handler.
type method struct {
	call func(ctx context.Context, params json.RawMessage) (interface{}, error)
}

// paramField is a struct field that receives a named or positional param.
type paramField struct {
	index    int
	name     string
	optional bool
}

// paramSpec decodes raw params into a value of typ.
type paramSpec struct {
	typ    reflect.Type
	fields []paramField // struct params only, in declaration order
	rename string       // from a `jsonrpc:"name"` tag on a blank field
}

func newParamSpec(t reflect.Type) *paramSpec {
	p := &paramSpec{typ: t}
	if t.Kind() != reflect.Struct {
		return p
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" {
			if tag := f.Tag.Get("jsonrpc"); tag != "" {
				p.rename = tag
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := f.Name
		optional := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" || opt == "omitzero" {
					optional = true
				}
			}
		}
		p.fields = append(p.fields, paramField{index: i, name: name, optional: optional})
	}
	return p
}

func invalidParams(msg string) error {
	return jsonrpc.NewError(jsonrpc.CodeInvalidParams, msg)
}

// decode returns the params as a value of p.typ. An array is decoded by
// position into struct fields; an object by name.
func (p *paramSpec) decode(raw json.RawMessage) (reflect.Value, error) {
	v := reflect.New(p.typ)
	absent := len(raw) == 0 || string(raw) == "null"

	if p.typ.Kind() != reflect.Struct {
		if !absent {
			if err := json.Unmarshal(raw, v.Interface()); err != nil {
				return reflect.Value{}, invalidParams("invalid params")
			}
		}
		return v.Elem(), nil
	}

	if absent {
		for _, f := range p.fields {
			if !f.optional {
				return reflect.Value{}, invalidParams("missing param: " + f.name)
			}
		}
		return v.Elem(), nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > len(p.fields) {
			return reflect.Value{}, invalidParams("invalid number of params")
		}
		for i, f := range p.fields {
			if i >= len(list) {
				if !f.optional {
					return reflect.Value{}, invalidParams("invalid number of params")
				}
				continue
			}
			field := v.Elem().Field(f.index)
			if err := json.Unmarshal(list[i], field.Addr().Interface()); err != nil {
				return reflect.Value{}, invalidParams("invalid param: " + f.name)
			}
		}
		return v.Elem(), nil
	}

	var named map[string]json.RawMessage
	if err := json.Unmarshal(raw, &named); err != nil {
		return reflect.Value{}, invalidParams("invalid params")
	}
	if err := json.Unmarshal(raw, v.Interface()); err != nil {
		return reflect.Value{}, invalidParams("invalid params")
	}
	for _, f := range p.fields {
		if _, ok := named[f.name]; !ok && !f.optional {
			return reflect.Value{}, invalidParams("missing param: " + f.name)
		}
	}
	return v.Elem(), nil
}

// Register adds the methods of receiver to the server.
// The namespace prefixes all method names (e.g., "math" + "Add" -> "math.Add").
// Use empty string for no namespace (method names used directly).
// Only exported methods with the signature func(context.Context, P) (R, error)
// are registered. Register panics if a name is already taken.
func (s *Server) Register(namespace string, receiver interface{}) {
	val := reflect.ValueOf(receiver)
	typ := val.Type()

	for i := 0; i < typ.NumMethod(); i++ {
		rm := typ.Method(i)
		if !rm.IsExported() {
			continue
		}
		m, name := parseMethod(val, rm)
		if m == nil {
			continue
		}
		if namespace != "" {
			name = namespace + "." + name
		}
		s.add(name, m)
		s.logger.Debug("rpc method registered", zapMethod(name))
	}
}

// parseMethod returns nil for methods without a valid signature.
func parseMethod(receiver reflect.Value, rm reflect.Method) (*method, string) {
	ft := rm.Func.Type()
	if ft.NumIn() != 3 || ft.In(1) != contextType {
		return nil, ""
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil, ""
	}

	spec := newParamSpec(ft.In(2))
	name := rm.Name
	if spec.rename != "" {
		name = spec.rename
	}
	fn := rm.Func

	return &method{
		call: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			param, err := spec.decode(raw)
			if err != nil {
				return nil, err
			}
			out := fn.Call([]reflect.Value{receiver, reflect.ValueOf(ctx), param})
			if !out[1].IsNil() {
				return nil, out[1].Interface().(error)
			}
			return out[0].Interface(), nil
		},
	}, name
}

// Handle binds fn to the method m. It panics if the name is already taken.
func Handle[P, R, E any](s *Server, m jsonrpc.Method[P, R, E], fn func(ctx context.Context, params P) (R, error)) {
	spec := newParamSpec(reflect.TypeOf((*P)(nil)).Elem())
	s.add(m.Name(), &method{
		call: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			v, err := spec.decode(raw)
			if err != nil {
				return nil, err
			}
			params, _ := v.Interface().(P)
			result, err := fn(ctx, params)
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	})
	s.logger.Debug("rpc method registered", zapMethod(m.Name()))
}
