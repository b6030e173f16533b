//go:build !linux

package i2c

var nakErrors []error
