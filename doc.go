// Package ddsctx keeps process-local DDS entities behind string keys and turns
// listener events into callbacks.
//
// A Registry wraps a dds.Runtime. Participants are cached per domain, QoS
// profiles per name, and topics, readers and writers per (domain, topic name).
// Asking for an entity that already exists returns the existing handle, so
// callers can register eagerly from several places without coordinating.
// Every topic, reader and writer gets a listener whose events are forwarded
// to the callback stored for that entity, together with the domain, the topic
// name and the raw status value. Events for entities without a callback are
// dropped.
//
// Samples are exchanged through indexed slots: Sample reserves a buffer for a
// descriptor, Read and Take fill it, and Data, Valid and Info inspect it.
//
// # Bundled engine
//
// Open reads Config, builds a Watermill bus for the selected transport
// (channel, nats, nats-jetstream, kafka, rabbitmq or io) and starts the
// bundled engine on it. The engine maps each topic to the bus topic
// <prefix>.<domain>.<name>, keeps per-reader history caches, matches local
// endpoints by QoS and raises deadline and liveliness statuses from a
// clock-driven monitor. The registry returned by Open owns the engine and
// closes it on Close.
//
// # Observability
//
// Metrics counts created entities, dispatched and dropped events and runtime
// operations. With MetricsEnabled, Open serves /metrics and /api/entities on
// MetricsPort.
package ddsctx
