// Copyright 2023 USDA Data Acquisition Authors

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package message validates raw configuration trees against typed structs.
//
// Configuration files for the datamart are heterogeneous, schema-free trees:
// a report entry is a table of scalar fields plus a nested table of sections,
// keyed by strings that are only known at runtime. Decoding such a file
// yields a generic map[string]interface{}, and this package converts that
// generic tree into typed structs, checking required fields, filling
// defaults, restricting choice lists and rejecting unknown keys.
package message

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stockparfait/errors"
)

// Message is implemented by struct pointers representing one configuration
// entry, e.g.:
//
//	type Section struct {
//	  Alias       string   `config:"alias"`
//	  Independent []string `config:"independent" required:"true"`
//	  Fields      []string `config:"fields"`
//	}
//
//	func (s *Section) InitMessage(tree interface{}) error {
//	  return message.Init(s, tree)
//	}
//
// Recognized struct tags:
// `config:"key" required:"true" default:"value" choices:"one,two,three"`.
type Message interface {
	// InitMessage populates the message from a generic decoded tree, checking
	// required fields, setting defaults of optional fields, and rejecting
	// unrecognized keys. Nested Messages are initialized recursively.
	InitMessage(tree interface{}) error
}

// rMessage is the reflected Message interface type, obtained through a
// pointer since TypeOf on a nil interface value yields no type.
var rMessage = reflect.TypeOf((*Message)(nil)).Elem()

func convertToMessage(tree interface{}, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	if t.Kind() != reflect.Ptr {
		return Nil, errors.Reason(
			"type %s implements Message but is not a pointer", t.Name())
	}
	ptr := reflect.New(t.Elem())
	err := ptr.MethodByName("InitMessage").Call(
		[]reflect.Value{reflect.ValueOf(tree)})[0].Interface()
	if err != nil {
		return Nil, errors.Annotate(err.(error), "%s.InitMessage() failed", t.Name())
	}
	return ptr, nil
}

// convertToType recursively converts a raw tree value to basic types, slices
// and map[string]* of the target type. Pointer types implementing Message are
// initialized with their InitMessage() method. A nil tree becomes the zero or
// default Message value, as appropriate.
//
// Numbers are accepted as both int64 (TOML decoders) and float64 (JSON
// decoders), as long as the value is integral.
func convertToType(tree interface{}, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	if t.Implements(rMessage) {
		if tree == nil {
			return reflect.Zero(t), nil
		}
		ptr, err := convertToMessage(tree, t)
		if err != nil {
			return Nil, err
		}
		return ptr, nil
	}
	if ptrTp := reflect.PtrTo(t); ptrTp.Implements(rMessage) {
		if tree == nil {
			tree = make(map[string]interface{}) // force default values for t
		}
		ptr, err := convertToMessage(tree, ptrTp)
		if err != nil {
			return Nil, err
		}
		return reflect.Indirect(ptr), nil
	}
	if tree == nil {
		return reflect.Zero(t), nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		v, err := convertToType(tree, t.Elem())
		if err != nil {
			return Nil, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil

	case reflect.Bool:
		v, ok := tree.(bool)
		if !ok {
			return Nil, errors.Reason("not a bool value: %v", tree)
		}
		return reflect.ValueOf(v), nil

	case reflect.Int:
		switch n := tree.(type) {
		case int64:
			return reflect.ValueOf(int(n)), nil
		case float64:
			if n != float64(int64(n)) {
				return Nil, errors.Reason("not an integer value: %v", tree)
			}
			return reflect.ValueOf(int(n)), nil
		}
		return Nil, errors.Reason("not a numeric value: %v", tree)

	case reflect.String:
		v, ok := tree.(string)
		if !ok {
			return Nil, errors.Reason("not a string value: %v", tree)
		}
		return reflect.ValueOf(v), nil

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Nil, errors.Reason(
				"map[%s] is not supported", t.Key().Kind().String())
		}
		v, ok := tree.(map[string]interface{})
		if !ok {
			return Nil, errors.Reason("not a string-keyed table: %v", tree)
		}
		res := reflect.MakeMap(t)
		for k, el := range v {
			conv, err := convertToType(el, t.Elem())
			if err != nil {
				return Nil, errors.Annotate(err, "bad value for key %q", k)
			}
			res.SetMapIndex(reflect.ValueOf(k), conv)
		}
		return res, nil

	case reflect.Slice:
		v, ok := tree.([]interface{})
		if !ok {
			return Nil, errors.Reason("not a list value: %v", tree)
		}
		res := reflect.MakeSlice(t, len(v), len(v))
		for i, el := range v {
			conv, err := convertToType(el, t.Elem())
			if err != nil {
				return Nil, errors.Annotate(err, "bad list element %d", i)
			}
			res.Index(i).Set(conv)
		}
		return res, nil

	default:
		return Nil, errors.Reason("unsupported type: %s", t.Name())
	}
}

// fromString converts a string s to the type t; used for `default:` tags.
func fromString(s string, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	switch t.Kind() {
	case reflect.Ptr:
		v, err := fromString(s, t.Elem())
		if err != nil {
			return Nil, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid bool value: %s", s)
		}
		return reflect.ValueOf(v), nil
	case reflect.Int:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid int value: %s", s)
		}
		return reflect.ValueOf(int(v)), nil
	case reflect.String:
		return reflect.ValueOf(s), nil
	}
	return Nil, errors.Reason("type %s is not supported as a default", t.Name())
}

// checkSet sets the struct field value fv to v after checking any `choices:`
// restriction on the field f.
func checkSet(f reflect.StructField, fv reflect.Value, v reflect.Value) error {
	if choices, ok := f.Tag.Lookup("choices"); ok {
		if f.Type.Kind() != reflect.String {
			return errors.Reason(
				"choices tag applied to a non-string field: %s", f.Name)
		}
		s := v.Interface().(string)
		if !StringIn(s, strings.Split(choices, ",")...) {
			return errors.Reason(
				"value for %s is not in its choice list: '%s'", f.Name, s)
		}
	}
	fv.Set(v)
	return nil
}

// configKey returns the tree key for a struct field and whether the field
// participates in the message at all.
func configKey(f reflect.StructField) (string, bool) {
	firstChar, _ := utf8.DecodeRuneInString(f.Name)
	if !unicode.IsUpper(firstChar) {
		return "", false
	}
	key := f.Name
	if tag := f.Tag.Get("config"); tag != "" {
		if tag == "-" {
			return "", false
		}
		key = tag
	}
	return key, true
}

// Init is the generic workhorse behind most InitMessage implementations. It
// expects m to be a struct pointer and tree to be a non-nil
// map[string]interface{}.
func Init(m Message, tree interface{}) error {
	rt := reflect.TypeOf(m)
	if !(rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct) {
		return errors.Reason(
			"expected Message instance to be a struct pointer, but got %s",
			rt.Name())
	}
	if tree == nil {
		return errors.Reason("config entry is nil")
	}
	treeMap, ok := tree.(map[string]interface{})
	if !ok {
		return errors.Reason("config entry is not a table: %v", tree)
	}

	rt = rt.Elem()
	rv := reflect.ValueOf(m).Elem()
	foundKeys := make(map[string]struct{})
	missingRequired := []string{}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		key, ok := configKey(f)
		if !ok {
			continue
		}
		rfv := rv.FieldByName(f.Name)
		if raw, ok := treeMap[key]; ok {
			foundKeys[key] = struct{}{}
			v, err := convertToType(raw, f.Type)
			if err != nil {
				return errors.Annotate(err, "error assigning field %s", key)
			}
			if err := checkSet(f, rfv, v); err != nil {
				return err
			}
			continue
		}

		// No value in the tree, figure out what to do.
		if f.Tag.Get("required") == "true" {
			missingRequired = append(missingRequired, key)
			continue
		}
		if defaultVal, ok := f.Tag.Lookup("default"); ok {
			v, err := fromString(defaultVal, f.Type)
			if err != nil {
				return errors.Annotate(err, "error setting default value for %s", key)
			}
			if err := checkSet(f, rfv, v); err != nil {
				return err
			}
			continue
		}
		// Not required and no default: the zero value, which still must pass a
		// possible `choices:` check.
		v, err := convertToType(nil, f.Type)
		if err != nil {
			return errors.Annotate(err, "error creating zero value for %s", key)
		}
		if err := checkSet(f, rfv, v); err != nil {
			return errors.Annotate(err, "error setting zero value for %s", key)
		}
	}
	if len(missingRequired) != 0 {
		return errors.Reason("missing required fields: %s",
			strings.Join(missingRequired, ", "))
	}
	extraKeys := []string{}
	for k := range treeMap {
		if _, ok := foundKeys[k]; ok {
			continue
		}
		extraKeys = append(extraKeys, k)
	}
	if len(extraKeys) != 0 {
		return errors.Reason("unsupported fields for %s: %s",
			rt.Name(), strings.Join(extraKeys, ", "))
	}
	return nil
}

// StringIn checks that s equals one of the values.
func StringIn(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
