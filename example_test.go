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

package poolkey_test

import (
	"fmt"
	"time"

	"github.com/bufbuild/poolkey"
	"github.com/bufbuild/poolkey/cache"
)

func Example() {
	// Seed the cache directly so the example is deterministic; in normal
	// use entries appear as hosts are resolved.
	store := cache.New()
	store.Set("api.internal", cache.Entry{
		IP:     "10.1.2.3",
		Expiry: time.Now().Add(time.Hour),
	})

	keyer := poolkey.New(poolkey.WithCache(store))
	defer keyer.Close()

	// Requests to api.internal share a pool bucket keyed by the resolved
	// address rather than the raw name.
	fmt.Println(keyer.Key(poolkey.Target{Host: "api.internal", Port: 443}))
	fmt.Println(keyer.Key(poolkey.Target{Host: "api.internal", Port: 443, Family: 4}))
	// Output:
	// 10.1.2.3:443:
	// 10.1.2.3:443::4
}
