package models

import "errors"

var ErrAuditImmutable = errors.New("price audit entries are immutable")
