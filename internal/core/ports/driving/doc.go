// Package driving defines the inbound ports of the hexagon: the service
// interfaces the CLI invokes.
package driving
