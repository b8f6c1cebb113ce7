// Package nrcs provides clients for the USDA NRCS soil data services: the
// Soil Data Mart WFS (map-unit polygons as GML) and the Soil Data Access
// tabular REST endpoint (component records as JSON).
package nrcs
