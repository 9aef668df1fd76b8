package scte35

import "errors"

// Errors a caller of ParseSpliceInfoSection must be prepared to see. Per the
// handler's error taxonomy, TruncatedSection, UnsupportedCommand,
// TooManyDescriptors, DescriptorLoopMismatch and BadCRC are all recoverable:
// the caller logs and drops the section, the stream keeps running.
var (
	ErrTruncatedSection      = errors.New("scte35: truncated splice_info_section")
	ErrUnsupportedCommand    = errors.New("scte35: unsupported splice_command_type")
	ErrTooManyDescriptors    = errors.New("scte35: more than 8 segmentation_descriptor entries")
	ErrDescriptorLoopMismatch = errors.New("scte35: descriptor bytes did not sum to descriptor_loop_length")
	ErrBadCRC                = errors.New("scte35: crc_32 check failed")
)

// maxRetainedDescriptors bounds how many segmentation_descriptor entries a
// section may carry; beyond this the section is rejected rather than
// silently truncated.
const maxRetainedDescriptors = 8
