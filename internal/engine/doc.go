// Package engine provides the execution broker. It validates run requests,
// hands them to the deployment's configured runner driver, normalizes the
// raw runner response into a canonical outcome, and records an audit entry
// for every execution that reached a runner.
package engine
