package i2c

import "syscall"

// errors the i2c-dev driver returns when no device acknowledges the address
var nakErrors = []error{syscall.ENXIO, syscall.EREMOTEIO}
