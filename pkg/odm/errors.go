package odm

import (
	"github.com/zeebo/errs"
)

// Error classes of document operations. Field validation errors are
// returned as the typed errors of package fields, unwrapped.
var (
	ErrInsert           = errs.Class("document insert")
	ErrUpdate           = errs.Class("document update")
	ErrDelete           = errs.Class("document delete")
	ErrNotFound         = errs.Class("document not found")
	ErrFind             = errs.Class("document find")
	ErrAggregate        = errs.Class("document aggregation")
	ErrIndex            = errs.Class("index creation")
	ErrInvalidID        = errs.Class("invalid object id")
	ErrNotConnected     = errs.Class("database not connected")
	ErrPolymorphicWrite = errs.Class("polymorphic write")
	ErrDeleted          = errs.Class("document deleted")
	ErrConfig           = errs.Class("model configuration")
)
