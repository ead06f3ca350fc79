/*
Package session serializes access to flow sessions.

A session has exactly one driver at a time: the Manager pairs a reference-counted local
mutex per session id with an optional distributed lock, so that several replicas sharing a
store never advance the same session concurrently.
*/
package session
