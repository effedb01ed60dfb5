// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package poolkey

import (
	"testing"
	"time"

	"github.com/bufbuild/poolkey/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	keyFunc KeyFunc
}

func (a *fakeAgent) SetKeyFunc(fn KeyFunc) {
	a.keyFunc = fn
}

func TestBind(t *testing.T) {
	t.Parallel()

	store := cache.New()
	store.Set("foo.example.com", cache.Entry{IP: "10.0.0.1", Expiry: time.Now().Add(time.Hour)})
	keyer := New(WithCache(store))
	t.Cleanup(func() {
		require.NoError(t, keyer.Close())
	})

	agent := &fakeAgent{}
	Bind(agent, keyer)
	require.NotNil(t, agent.keyFunc)
	assert.Equal(t, "10.0.0.1:443:", agent.keyFunc(Target{Host: "foo.example.com", Port: 443}))
}

func TestWithAgentBindsAtConstruction(t *testing.T) {
	t.Parallel()

	store := cache.New()
	store.Set("foo.example.com", cache.Entry{IP: "10.0.0.1", Expiry: time.Now().Add(time.Hour)})

	agent := &fakeAgent{}
	keyer := New(WithCache(store), WithAgent(agent))
	t.Cleanup(func() {
		require.NoError(t, keyer.Close())
	})

	require.NotNil(t, agent.keyFunc)
	assert.Equal(t, "10.0.0.1::", agent.keyFunc(Target{Host: "foo.example.com"}))
}
