// Package telemetry traces the matching pipeline with OpenTelemetry and
// exports pipeline events (feature builds, rankings) as JSON.
//
// The library never installs a global TracerProvider on its own. Hosts call
// InitProvider to ship spans over OTLP, or leave it alone and get no-op spans.
package telemetry
