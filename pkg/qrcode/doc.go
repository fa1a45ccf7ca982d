// Package qrcode renders QR code PNG images with github.com/skip2/go-qrcode.
package qrcode
