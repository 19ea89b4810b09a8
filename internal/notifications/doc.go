// Package notifications delivers daemon events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Reconcile summaries and conversion failures are the two event
// families; both can be toggled independently in configuration.
//
// Extend this package if you need alternative transports; all daemon code
// depends only on the simple Service interface.
package notifications
