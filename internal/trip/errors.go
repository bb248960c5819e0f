package trip

import "errors"

var (
	ErrNotFound        = errors.New("trip not found")
	ErrMessageNotFound = errors.New("message not found")
)
