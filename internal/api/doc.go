// Package api holds the view types and service operations shared by the
// daemon's HTTP surface and the CLI client.
package api
