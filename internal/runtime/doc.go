/*
Package runtime implements the entity registry and the event bridge.

# Layout

  - registry.go: Registry, its dependencies and teardown order
  - entities.go: QoS, participant, topic, reader and writer caches plus Send,
    Read and Take
  - samples.go: the indexed sample slot pool
  - dispatch.go: listener trampolines and callback lookup by entity handle
  - events.go: event codes and the Callback signature
  - metrics.go: Prometheus counters
  - http.go: /metrics and /api/entities
  - open.go: Open, which wires config, transport, engine and registry

# Sub-packages

  - config/: environment driven configuration
  - engine/: the bundled dds.Runtime over a Watermill bus
  - errors/: sentinel errors and typed errors
  - ids/: ULID message IDs and entity GUIDs
  - jsoncodec/: sonic backed JSON helpers
  - logging/: ServiceLogger and its adapters
  - metadata/: bus message headers
  - transport/: Factory turning a Config into a bus

# Locking

The registry holds one RWMutex for its maps. Callbacks are looked up under the
read lock and invoked after it is released, so a callback may call back into
the registry. Runtime calls that create or delete entities run under the write
lock; the engine never invokes a listener synchronously from those calls.
*/
package runtime
