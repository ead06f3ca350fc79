/*
Package observability turns interpreter lifecycle events into logs and metrics.

Both helpers return domain.LifecycleHooks; combine them with LifecycleHooks.Merge and pass
the result to the engine (charter.WithLifecycleHooks).
*/
package observability
