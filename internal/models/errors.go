package models

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyAdmitted = errors.New("guest already admitted")
)
