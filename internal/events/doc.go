// Package events provides the publish/subscribe hub behind supervisor
// notifications.
//
// The hub remembers the last event and fans new events out to buffered
// subscriber channels. Fan-out never blocks the publisher; a subscriber that
// stops reading simply misses events. Callers that need guaranteed delivery
// register a notifier callback on the supervisor instead.
package events
