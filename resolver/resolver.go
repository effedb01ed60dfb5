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

// Package resolver provides single-shot name resolution for bucket-key
// generation. Unlike a general-purpose resolver, it returns a single
// address per call: when a host resolves to multiple records, one is
// chosen uniformly at random, so that distinct clients (and distinct
// cache refreshes) spread their sockets across the record set.
package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"

	"github.com/bufbuild/poolkey/internal"
)

// Resolver is an interface for single-shot name resolution.
type Resolver interface {
	// ResolveOne resolves the given host once and returns a single
	// address, chosen at random when the lookup yields more than one.
	// Failures, including an empty result set, are reported as *Error.
	ResolveOne(ctx context.Context, host string) (string, error)
}

// Error is the failure kind for all resolution errors. It wraps the
// underlying lookup error, if any, so callers can still inspect it with
// errors.As (for example to find a *net.DNSError).
type Error struct {
	// Host is the name whose resolution failed.
	Host string
	// Err is the underlying cause, or nil when resolution succeeded
	// but produced no usable addresses.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %s: no addresses", e.Host)
	}
	return fmt.Sprintf("resolve %s: %v", e.Host, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewDNS creates a Resolver that resolves names via DNS using the given
// *net.Resolver. Only IPv4 addresses are considered: the lookup uses the
// "ip4" network, and any IPv4-in-IPv6 results are unmapped to their
// four-byte form before use.
func NewDNS(res *net.Resolver) Resolver {
	return &dnsResolver{
		resolver: res,
		rnd:      internal.NewRand(),
	}
}

type dnsResolver struct {
	resolver *net.Resolver

	// rnd is not thread-safe; mu guards it because refreshes for
	// different hosts may resolve concurrently.
	mu  sync.Mutex
	rnd *rand.Rand
}

func (r *dnsResolver) ResolveOne(ctx context.Context, host string) (string, error) {
	addresses, err := r.resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return "", &Error{Host: host, Err: err}
	}
	if len(addresses) == 0 {
		return "", &Error{Host: host}
	}
	return addresses[r.pick(len(addresses))].Unmap().String(), nil
}

func (r *dnsResolver) pick(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}
