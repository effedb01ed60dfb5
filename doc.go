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

// Package poolkey computes socket bucket keys for connection-pooling
// HTTP(S) agents. A pooling agent decides whether an outgoing request may
// reuse an existing socket by comparing bucket keys; by default such keys
// are derived from the raw hostname, which both re-resolves DNS far more
// often than necessary and fragments pools when one logical host is known
// under several names. This package instead keys buckets by a cached,
// periodically refreshed resolved address.
//
// To create a keyer, use the [New] function and bind it to your pooling
// agent, either at construction:
//
//	keyer := poolkey.New(
//	    poolkey.WithAgent(agent),
//	    poolkey.WithTTL(30*time.Second),
//	)
//
// or after the fact with [Bind]. From then on the agent's bucket keys are
// produced by [Keyer.Key].
//
// # Hot Path Guarantees
//
// Key is synchronous and never waits on name resolution. It returns the
// best data available at call time: the cached address if the host has
// one (even when past its TTL), the raw hostname otherwise. Missing or
// stale entries trigger a single background resolution; failures of that
// background work are reported to the configured logger and never delay
// or fail the Key call. DNS latency therefore never delays pool
// bucketing decisions.
//
// At most one resolution per host is in flight at a time. Concurrent
// callers that arrive while a resolution is in flight observe the prior
// cached address instead of starting their own lookup. A failed
// resolution leaves the previously cached address in place, so the worst
// case under persistent resolver failure is continuing to bucket by a
// stale address or by the raw hostname.
//
// # Cache Lifecycle
//
// Each Keyer owns its cache unless one is shared explicitly via
// [WithCache]. Entries are created by the first successful resolution of
// a host and overwritten in place by later ones; they are never evicted.
// Staleness is checked at read time. The only removal operation is
// [Keyer.Clear], which empties the whole cache. [Keyer.Entries] exposes a
// read-only snapshot for inspection.
package poolkey
