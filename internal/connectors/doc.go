// Package connectors provides clients for the remote geospatial services
// the pipelines pull from. Each connector knows how to talk to one service
// family (NRCS soil data, MRLC land cover) and translates its wire formats
// into domain types.
package connectors
