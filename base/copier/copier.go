// Copyright 2025 lowrank Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package copier

import (
	"encoding"
	"reflect"

	"github.com/juju/errors"
)

// Copy deep-copies src into dst. dst must be a pointer. Existing slice and
// map storage in dst is reused when shapes allow, so cloning a model into a
// pre-allocated twin does not reallocate its tables. Structs implementing
// encoding.BinaryMarshaler/BinaryUnmarshaler are copied through their binary
// form, which lets types with unexported fields participate.
func Copy(dst, src interface{}) error {
	dstPtr := reflect.ValueOf(dst)
	if dstPtr.Kind() != reflect.Ptr {
		return errors.NotValidf("expect dst to be a pointer, but receive %v", dstPtr.Kind())
	}
	return copyValue(dstPtr.Elem(), reflect.ValueOf(src))
}

func isScalar(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

func copyValue(dst, src reflect.Value) error {
	if dst.Kind() != src.Kind() {
		if dst.Kind() != reflect.Interface {
			return errors.NotValidf("different type: %v != %v", dst.Kind(), src.Kind())
		}
		// box a fresh copy of src into the interface
		boxed := reflect.New(src.Type())
		if err := copyValue(boxed.Elem(), src); err != nil {
			return err
		}
		dst.Set(boxed.Elem())
		return nil
	}

	if isScalar(dst.Kind()) {
		dst.Set(src)
		return nil
	}

	switch dst.Kind() {
	case reflect.Slice:
		if dst.IsNil() || (!dst.CanAddr() && dst.Len() != src.Len()) || dst.Cap() < src.Len() {
			dst.Set(reflect.MakeSlice(src.Type(), src.Len(), src.Len()))
		} else if dst.CanAddr() {
			dst.SetLen(src.Len())
		}
		for i := 0; i < src.Len(); i++ {
			if err := copyValue(dst.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		if !reflect.DeepEqual(dst.Interface(), src.Interface()) {
			dst.Set(reflect.MakeMap(dst.Type()))
			for _, k := range src.MapKeys() {
				value := src.MapIndex(k)
				boxed := reflect.New(value.Type())
				if err := copyValue(boxed.Elem(), value); err != nil {
					return err
				}
				dst.SetMapIndex(k, boxed.Elem())
			}
		}
	case reflect.Struct:
		if dst.Type().Name() != src.Type().Name() {
			return errors.NotValidf("different struct: %v != %v", dst.Type().Name(), src.Type().Name())
		}
		dstPointer := reflect.New(dst.Type())
		srcPointer := reflect.New(src.Type())
		srcPointer.Elem().Set(src)
		marshaler, hasMarshaler := srcPointer.Interface().(encoding.BinaryMarshaler)
		unmarshaler, hasUnmarshaler := dstPointer.Interface().(encoding.BinaryUnmarshaler)
		if hasMarshaler && hasUnmarshaler {
			data, err := marshaler.MarshalBinary()
			if err != nil {
				return errors.Trace(err)
			}
			if err = unmarshaler.UnmarshalBinary(data); err != nil {
				return errors.Trace(err)
			}
			dst.Set(dstPointer.Elem())
		} else {
			for i := 0; i < src.NumField(); i++ {
				if !dst.Field(i).CanSet() {
					continue
				}
				if err := copyValue(dst.Field(i), src.Field(i)); err != nil {
					return err
				}
			}
		}
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(src.Elem().Type()))
		}
		if err := copyValue(dst.Elem(), src.Elem()); err != nil {
			return err
		}
	case reflect.Interface:
		if !dst.IsNil() && !isScalar(dst.Elem().Kind()) {
			// reuse the value held by the interface
			return copyValue(dst.Elem(), src.Elem())
		}
		boxed := reflect.New(src.Elem().Type())
		if err := copyValue(boxed.Elem(), src.Elem()); err != nil {
			return err
		}
		dst.Set(boxed.Elem())
	default:
		return errors.NotValidf("unsupported type: %v", dst.Kind())
	}
	return nil
}
