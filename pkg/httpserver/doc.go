// Package httpserver runs an http.Handler until the supplied context is
// cancelled and then drains in-flight requests within a shutdown timeout.
package httpserver
