package playlist

import "errors"

// ErrBadMediaInfo is returned when an operation needs stream metadata (time
// scale, codec, stream type) that has not been established yet via
// SetMediaInfo.
var ErrBadMediaInfo = errors.New("playlist: media info not set or invalid")
