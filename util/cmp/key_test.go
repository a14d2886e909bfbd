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

package cmp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type strKey string

func (s strKey) Key(b *strings.Builder) {
	b.WriteString(string(s))
}

func Test_GetKey(t *testing.T) {
	assert.Equal(t, "", GetKey(strKey("")))
	assert.Equal(t, "alice", GetKey(strKey("alice")))
}

func Test_EqualAndHash(t *testing.T) {
	assert := assert.New(t)
	assert.True(Equal(strKey("bob"), strKey("bob")))
	assert.False(Equal(strKey("bob"), strKey("eve")))
	assert.Equal(Hash(strKey("bob")), Hash(strKey("bob")))
	assert.NotEqual(Hash(strKey("bob")), Hash(strKey("eve")))
}

func Test_KeyList(t *testing.T) {
	var b strings.Builder
	KeyList(&b, []strKey{"a", "b", "c"}, " ")
	assert.Equal(t, "a b c", b.String())
	b.Reset()
	KeyList(&b, []strKey(nil), ",")
	assert.Equal(t, "", b.String())
}
