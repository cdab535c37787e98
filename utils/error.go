package utils

import "errors"

// ErrorRecordNotFound is the storage-agnostic not-found error models return so
// handlers do not have to match on gorm internals.
var ErrorRecordNotFound = errors.New("record not found")
