// Package services implements the preparation pipelines behind the driving
// ports: SSURGO soil acquisition and classification, and NLCD land-cover
// download with Manning's n reclassification. Services orchestrate the
// driven ports and hold no transport or file-format knowledge themselves.
package services
