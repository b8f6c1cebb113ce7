// Package driven defines the outbound ports of the hexagon: interfaces the
// core services call and that connectors and file adapters implement.
package driven
