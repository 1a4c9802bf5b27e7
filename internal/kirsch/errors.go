package kirsch

import "errors"

// ErrInvalidParameter is returned for parameters rejected before any work is
// done: a non-positive scale, an unknown palette or border policy, or a
// threshold outside the int32 range.
var ErrInvalidParameter = errors.New("invalid parameter")
