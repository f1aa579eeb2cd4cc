package domain

import "fmt"

// FindOptions bounds and orders a find call.
type FindOptions struct {
	Limit int64 `json:"limit,omitempty"`
	Skip  int64 `json:"skip,omitempty"`
	Sort  D     `json:"sort,omitempty"`
}

// Validate validates find options
func (o FindOptions) Validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if o.Skip < 0 {
		return fmt.Errorf("skip cannot be negative")
	}
	return nil
}
