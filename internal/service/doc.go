// Package service supervises the local embedding inference process.
//
// The Supervisor owns the full lifecycle: it prepares an isolated runtime
// environment (creating it and installing dependencies only when an import
// probe fails), picks a free loopback port, spawns the process with
// credentials injected via environment variables, polls its health
// endpoint on a fixed interval, and terminates it on request.
//
// States move NotStarted → Starting → Ready ⇄ Indexing, with Failed
// reachable from Starting or any runtime crash. Restart after a failure is
// caller-initiated: a later Start begins from scratch. Start is idempotent;
// concurrent callers share one in-flight startup via singleflight.
//
// When health checks keep failing but the process is alive, the Supervisor
// assumes a health-check misconfiguration and marks the service Ready in
// degraded mode, logging a warning and flagging Degraded on the handle so
// callers can surface it. This is a deliberate leniency: a possibly working
// service is preferred over a certain failure.
//
// Other components never touch the process; they observe status through
// Handle and the Subscribe event channel.
package service
