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

// KeyFunc generates the bucket key that a pooling agent uses to decide
// whether a request may reuse an existing socket.
type KeyFunc func(Target) string

// Agent is the interface a connection-pooling agent exposes so its
// bucket-key strategy can be supplied externally. Everything else about
// the pool (socket limits, idle timers, lifecycle) remains the agent's
// own concern.
//
// Agents that accept a KeyFunc at construction time do not need this
// interface; it exists for binding to agents that are constructed
// elsewhere. See [WithAgent] for the constructive form.
type Agent interface {
	// SetKeyFunc replaces the agent's bucket-key generation strategy.
	SetKeyFunc(fn KeyFunc)
}

// Bind installs the keyer's Key function as the agent's bucket-key
// strategy.
func Bind(agent Agent, keyer *Keyer) {
	agent.SetKeyFunc(keyer.Key)
}
