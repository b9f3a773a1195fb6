package capacity

import "errors"

// ErrInvalidConfig — некорректные лимиты Tracker.
var ErrInvalidConfig = errors.New("invalid capacity config")
