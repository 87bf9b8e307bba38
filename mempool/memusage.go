// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"reflect"
)

// txDescDynamicUsage estimates the dynamic memory held by a mempool entry,
// including the transaction it wraps.  The estimate feeds the pool's cached
// usage counter, so it is computed exactly once at admission and the same
// value is subtracted on removal.
func txDescDynamicUsage(txD *TxDesc) uintptr {
	return dynamicMemUsage(reflect.ValueOf(txD))
}

// dynamicMemUsage returns an estimate of the number of bytes of dynamic
// memory reachable from v.  For complex types it peeks inside slices, arrays,
// structs, and maps and chases pointers.
func dynamicMemUsage(v reflect.Value) uintptr {
	t := v.Type()
	bytes := t.Size()

	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			bytes += dynamicMemUsage(v.Elem())
		}

	case reflect.Array, reflect.Slice:
		for j := 0; j < v.Len(); j++ {
			vi := v.Index(j)
			k := vi.Type().Kind()
			elemB := uintptr(0)
			if t.Kind() == reflect.Array {
				if (k == reflect.Pointer || k == reflect.Interface) && !vi.IsNil() {
					elemB += dynamicMemUsage(vi.Elem())
				}
			} else {
				elemB += dynamicMemUsage(vi)
			}
			if k == reflect.Uint8 {
				// Short circuit for byte slices and arrays since
				// every element has the same size.
				bytes += elemB * uintptr(v.Len())
				break
			}
			bytes += elemB
		}

	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			bytes += dynamicMemUsage(iter.Key())
			bytes += dynamicMemUsage(iter.Value())
		}

	case reflect.Struct:
		for _, f := range reflect.VisibleFields(t) {
			vf := v.FieldByIndex(f.Index)
			k := vf.Type().Kind()
			if (k == reflect.Pointer || k == reflect.Interface) && !vf.IsNil() {
				bytes += dynamicMemUsage(vf.Elem())
			} else if k == reflect.Array || k == reflect.Slice {
				bytes -= vf.Type().Size()
				bytes += dynamicMemUsage(vf)
			}
		}
	}

	return bytes
}
