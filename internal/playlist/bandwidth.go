package playlist

// BandwidthEstimator tracks per-segment bitrate to report BANDWIDTH and
// AVERAGE-BANDWIDTH for a rendition. It is intentionally simple: a running
// max and a running total, not a windowed estimate, since a media playlist
// only needs one number for the lifetime of the rendition (the master
// playlist, out of scope here, is what would need a sliding estimate across
// renditions).
type BandwidthEstimator struct {
	maxBitrate   uint64
	totalBits    float64
	totalSeconds float64
}

// NewBandwidthEstimator returns an estimator with no observations yet.
func NewBandwidthEstimator() *BandwidthEstimator {
	return &BandwidthEstimator{}
}

// AddBlock folds one segment's size and duration into the estimate. A
// zero or negative duration is ignored rather than dividing by it.
func (e *BandwidthEstimator) AddBlock(sizeBytes uint64, durationSeconds float64) {
	if durationSeconds <= 0 {
		return
	}
	bits := float64(sizeBytes) * 8
	bitrate := uint64(bits / durationSeconds)
	if bitrate > e.maxBitrate {
		e.maxBitrate = bitrate
	}
	e.totalBits += bits
	e.totalSeconds += durationSeconds
}

// Max returns the highest observed per-segment bitrate.
func (e *BandwidthEstimator) Max() uint64 {
	return e.maxBitrate
}

// Average returns the average bitrate across every observed segment: total
// bits over total duration.
func (e *BandwidthEstimator) Average() uint64 {
	if e.totalSeconds <= 0 {
		return 0
	}
	return uint64(e.totalBits / e.totalSeconds)
}
