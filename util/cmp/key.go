// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmp provides structural identity for plan nodes, terms, and other
// immutable values.
package cmp

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// The Key interface is satisfied by any object whose identity can be serialized
// into a string. Two objects with the same key are considered equal.
type Key interface {
	// Key writes a serialization of the object's identity to the given
	// strings.Builder. This should be optimized for machine consumption but
	// remain readable enough to debug from.
	Key(*strings.Builder)
}

// GetKey returns the identity/comparison key of the object.
func GetKey(object Key) string {
	var b strings.Builder
	object.Key(&b)
	return b.String()
}

// Equal returns true if a and b have identical keys.
func Equal(a, b Key) bool {
	return GetKey(a) == GetKey(b)
}

// Hash returns a stable 64-bit hash of the object's key. Objects that are Equal
// have the same Hash.
func Hash(object Key) uint64 {
	return xxhash.Sum64String(GetKey(object))
}

// KeyList writes the keys of each item to b, separated by sep.
func KeyList[T Key](b *strings.Builder, items []T, sep string) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(sep)
		}
		item.Key(b)
	}
}
