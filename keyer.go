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
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bufbuild/poolkey/cache"
	"github.com/bufbuild/poolkey/internal"
	"github.com/bufbuild/poolkey/resolver"
	"golang.org/x/sync/errgroup"
)

// defaultTTL is how long a resolved address is considered fresh when no
// WithTTL option is given.
const defaultTTL = 5 * time.Second

// Target identifies the logical destination of a request for bucket-key
// purposes. Host is required; the remaining fields are optional and are
// incorporated into the key verbatim when set.
type Target struct {
	// Host is the hostname the request is addressed to.
	Host string
	// Port is the destination port. Zero means unspecified.
	Port int
	// LocalAddr is the local address the socket should bind to, if any.
	LocalAddr string
	// Family, when set to 4, adds a ":4" marker to the generated key.
	// This mirrors the address-family suffix used by pooling agents that
	// segregate IPv4-pinned sockets; any other value is ignored.
	Family int
}

// Option is an option used to customize the behavior of a Keyer.
type Option interface {
	apply(*keyerOptions)
}

// WithTTL configures how long a resolved address is considered fresh.
// After the TTL elapses, reads still return the cached address but also
// trigger a background re-resolution. If not provided, a TTL of five
// seconds is used.
func WithTTL(ttl time.Duration) Option {
	return optionFunc(func(opts *keyerOptions) {
		opts.ttl = ttl
	})
}

// WithResolver configures the Keyer to use the given resolver. If not
// provided, names are resolved via DNS using net.DefaultResolver.
func WithResolver(res resolver.Resolver) Option {
	return optionFunc(func(opts *keyerOptions) {
		opts.resolver = res
	})
}

// WithCache configures the Keyer to use the given store instead of creating
// its own. This allows several Keyers to share one cache, and lets tests
// seed or inspect entries directly.
func WithCache(store *cache.Store) Option {
	return optionFunc(func(opts *keyerOptions) {
		opts.store = store
	})
}

// WithLogger configures the logger that receives warnings from background
// refreshes. Failures of refreshes triggered by Key are reported here and
// nowhere else. If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(opts *keyerOptions) {
		opts.logger = logger
	})
}

// WithRootContext configures the root context used for background
// resolutions that a Keyer spawns. If not specified, [context.Background]
// is used.
//
// If the given context is cancelled, background refreshes stop making
// progress; cancel it only once the Keyer is no longer in use.
func WithRootContext(ctx context.Context) Option {
	return optionFunc(func(opts *keyerOptions) {
		opts.rootCtx = ctx
	})
}

// WithAgent binds the new Keyer's Key function to the given pooling agent
// at construction time. It is equivalent to calling [Bind] on the agent
// after New returns.
func WithAgent(agent Agent) Option {
	return optionFunc(func(opts *keyerOptions) {
		opts.agent = agent
	})
}

type optionFunc func(*keyerOptions)

func (f optionFunc) apply(opts *keyerOptions) {
	f(opts)
}

type keyerOptions struct {
	ttl      time.Duration
	resolver resolver.Resolver
	store    *cache.Store
	logger   *slog.Logger
	rootCtx  context.Context //nolint:containedctx
	agent    Agent
}

func (opts *keyerOptions) applyDefaults() {
	if opts.ttl == 0 {
		opts.ttl = defaultTTL
	}
	if opts.resolver == nil {
		opts.resolver = resolver.NewDNS(net.DefaultResolver)
	}
	if opts.store == nil {
		opts.store = cache.New()
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.rootCtx == nil {
		opts.rootCtx = context.Background()
	}
}

// Keyer computes the socket bucket keys a connection-pooling agent uses to
// decide whether a request may reuse an existing socket. It substitutes a
// cached resolved address for the raw hostname, so repeated requests to the
// same logical host land in a pool keyed by a stable IP instead of
// re-resolving on every request.
//
// The hot path, Key, is synchronous and never waits on resolution: it
// returns the best available data immediately and refreshes stale or
// missing entries in the background. At most one resolution per host is in
// flight at a time.
type Keyer struct {
	store  *cache.Store
	res    resolver.Resolver
	ttl    time.Duration
	clock  internal.Clock
	logger *slog.Logger

	rootCtx    context.Context //nolint:containedctx
	cancel     context.CancelFunc
	background sync.WaitGroup

	// mu serializes refresh coordination: checking and setting the
	// Refreshing flag, and writing back completion results. Resolution
	// itself runs outside the lock.
	mu sync.Mutex
}

// New returns a new Keyer that uses the given options.
func New(options ...Option) *Keyer {
	var opts keyerOptions
	for _, opt := range options {
		opt.apply(&opts)
	}
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(opts.rootCtx)
	keyer := &Keyer{
		store:   opts.store,
		res:     opts.resolver,
		ttl:     opts.ttl,
		clock:   internal.NewRealClock(),
		logger:  opts.logger,
		rootCtx: ctx,
		cancel:  cancel,
	}
	if opts.agent != nil {
		Bind(opts.agent, keyer)
	}
	return keyer
}

// Key returns the bucket key for the given target. It is synchronous and
// never waits on name resolution: if the target's host has a cached
// address, that address is used as the key's base, even when it is past
// its TTL; otherwise the raw hostname is used. A missing or stale entry
// triggers a background resolution whose failure is reported to the
// configured logger and never surfaced here.
//
// The key has the form "base:port:localAddr", with a trailing ":4" when
// the target's Family is 4. Unset fields are left empty but their
// separators remain, so a bare host "foo" yields "foo::".
func (k *Keyer) Key(target Target) string {
	entry, ok := k.store.Get(target.Host)
	base := target.Host
	if ok {
		base = entry.IP
	}
	if !ok || k.clock.Now().After(entry.Expiry) {
		k.refresh(target.Host)
	}

	var key strings.Builder
	key.WriteString(base)
	key.WriteByte(':')
	if target.Port != 0 {
		key.WriteString(strconv.Itoa(target.Port))
	}
	key.WriteByte(':')
	key.WriteString(target.LocalAddr)
	if target.Family == 4 {
		key.WriteString(":4")
	}
	return key.String()
}

// Lookup resolves the given host, updating the cache, and returns the
// resolved address. It is the explicit, awaitable counterpart to the
// background refresh that Key triggers.
//
// If a resolution for the host is already in flight, Lookup does not start
// another one: it immediately returns the host's current cached address,
// which may be stale. On failure the cached address and expiry are left
// untouched and the error is returned to the caller.
//
// Note that when no entry exists yet, two concurrent Lookup calls for the
// same host are not mutually excluded: both may resolve independently and
// the later write wins. Also note that no deadline is imposed on the
// resolver beyond ctx: a resolver call that never returns leaves the
// host's entry marked refreshing indefinitely, blocking further refresh
// attempts for that host.
func (k *Keyer) Lookup(ctx context.Context, host string) (string, error) {
	return k.lookup(ctx, host, false)
}

// lookup implements both the explicit Lookup path and the background
// refresh path. A background refresh is a scheduled observation of
// staleness, and another resolution may complete between the observation
// and the goroutine actually running; staleOnly makes a fresh entry
// short-circuit the resolution so such late refreshes do nothing.
func (k *Keyer) lookup(ctx context.Context, host string, staleOnly bool) (string, error) {
	k.mu.Lock()
	entry, existed := k.store.Get(host)
	if existed && entry.Refreshing {
		k.mu.Unlock()
		return entry.IP, nil
	}
	if staleOnly && existed && !k.clock.Now().After(entry.Expiry) {
		k.mu.Unlock()
		return entry.IP, nil
	}
	if existed {
		entry.Refreshing = true
		k.store.Set(host, entry)
	}
	k.mu.Unlock()

	address, err := k.res.ResolveOne(ctx, host)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err != nil {
		if existed {
			if current, ok := k.store.Get(host); ok {
				current.Refreshing = false
				k.store.Set(host, current)
			}
		}
		return "", err
	}
	k.store.Set(host, cache.Entry{
		IP:     address,
		Expiry: k.clock.Now().Add(k.ttl),
	})
	return address, nil
}

// Prewarm resolves the given hosts up front, so that subsequent Key calls
// for them return IP-based keys immediately. Resolutions run concurrently;
// the first failure cancels the rest and is returned.
func (k *Keyer) Prewarm(ctx context.Context, hosts ...string) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, host := range hosts {
		group.Go(func() error {
			_, err := k.Lookup(ctx, host)
			return err
		})
	}
	return group.Wait()
}

// Entries returns a read-only snapshot of the cache contents, keyed by
// host.
func (k *Keyer) Entries() map[string]cache.Entry {
	return k.store.Snapshot()
}

// Clear removes all cached entries. The next Key call for any host falls
// back to the raw hostname and triggers a fresh resolution.
func (k *Keyer) Clear() {
	k.store.Clear()
}

// Close cancels any in-flight background resolutions and waits for them to
// finish. The Keyer should not be used after it has been closed.
func (k *Keyer) Close() error {
	k.cancel()
	k.background.Wait()
	return nil
}

// refresh starts a background resolution for the given host. Failures go
// to the logger; they are never surfaced to the Key caller that triggered
// the refresh. If a resolution for the host is already in flight, or the
// entry has already been refreshed by the time the goroutine runs, the
// spawned lookup is a no-op beyond a cache read.
func (k *Keyer) refresh(host string) {
	k.background.Add(1)
	go func() {
		defer k.background.Done()
		if _, err := k.lookup(k.rootCtx, host, true); err != nil {
			k.logger.Warn("background address refresh failed", "host", host, "error", err)
		}
	}()
}
