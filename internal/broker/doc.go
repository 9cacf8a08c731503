// Package broker wraps a single AMQP 0-9-1 connection/channel pair shared by
// one process, the queue-based transport every Triod role talks over in
// place of the coordinator/node HTTP calls this system's teacher used.
//
//	            manager_commands ┌─────────┐ storage-{id} ┌─────────┐ replica-{id} ┌─────────┐
//	   client ─────────────────▶ │ manager │ ───────────▶ │ storage │ ───────────▶ │ replica │
//	          ◀───────────────── └─────────┘              └────┬────┘    (COPY)    └─────────┘
//	           client_responses                                │ showcase_data
//	                                                           ▼
//	                                                      ┌──────────┐
//	                                                      │ showcase │
//	                                                      └──────────┘
//
// Every role declares the queues it owns at startup, publishes JSON-encoded
// envelope.Envelope values, and consumes with auto-ack (matching the
// predecessor's pika auto_ack=True — delivery is at-most-once, acceptable
// per spec.md's non-goals around durable redelivery).
package broker
