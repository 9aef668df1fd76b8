package playlist

import "fmt"

// EntryType tags which variant of HlsEntry is populated.
type EntryType uint8

const (
	EntryExtInf EntryType = iota
	EntryExtKey
	EntryExtDiscontinuity
	EntryExtPlacementOpportunity
	EntryExtSignalExit
	EntryExtSignalSpan
	EntryExtSignalReturn
)

// HlsEntry is a tagged variant over every line (or line group) a
// MediaPlaylist can hold. Modeling it this way -- one exhaustive switch in
// Render, rather than an interface with one implementation per line type --
// keeps the sliding-window walk (which must classify every entry) a single
// type switch instead of a type assertion per case.
type HlsEntry struct {
	Type            EntryType
	ExtInf          *ExtInfEntry
	ExtKey          *ExtKeyEntry
	ExtSignalExit   *SignalExitEntry
	ExtSignalSpan   *SignalSpanEntry
	ExtSignalReturn *SignalReturnEntry
}

// Render returns the entry's exact playlist text, including any embedded
// newlines (EXTINF entries span two or three lines: the tag, an optional
// BYTERANGE tag, and the segment URI).
func (e *HlsEntry) Render() string {
	switch e.Type {
	case EntryExtInf:
		return e.ExtInf.render()
	case EntryExtKey:
		return e.ExtKey.render()
	case EntryExtDiscontinuity:
		return "#EXT-X-DISCONTINUITY"
	case EntryExtPlacementOpportunity:
		return "#EXT-X-PLACEMENT-OPPORTUNITY"
	case EntryExtSignalExit:
		return e.ExtSignalExit.render()
	case EntryExtSignalSpan:
		return e.ExtSignalSpan.render()
	case EntryExtSignalReturn:
		return e.ExtSignalReturn.render()
	default:
		return ""
	}
}

// ExtInfEntry is one media segment.
type ExtInfEntry struct {
	FileName                 string
	StartTime                float64
	Duration                 float64
	UseByteRange             bool
	StartByteOffset          uint64
	SegmentFileSize          uint64
	PreviousSegmentEndOffset uint64
}

func (s *ExtInfEntry) render() string {
	out := fmt.Sprintf("#EXTINF:%.3f,", s.Duration)
	if s.UseByteRange {
		out += fmt.Sprintf("\n#EXT-X-BYTERANGE:%d", s.SegmentFileSize)
		if s.PreviousSegmentEndOffset+1 != s.StartByteOffset {
			out += fmt.Sprintf("@%d", s.StartByteOffset)
		}
	}
	out += "\n" + s.FileName
	return out
}

// ExtKeyEntry is an encryption key change.
type ExtKeyEntry struct {
	Method            EncryptionMethod
	URI               string
	KeyID             string
	IV                string
	KeyFormat         string
	KeyFormatVersions string
}

func (k *ExtKeyEntry) render() string {
	t := newTag("#EXT-X-KEY").addString("METHOD", k.Method.String())
	t.addQuotedString("URI", k.URI)
	if k.KeyID != "" {
		t.addString("KEYID", k.KeyID)
	}
	if k.IV != "" {
		t.addString("IV", k.IV)
	}
	if k.KeyFormatVersions != "" {
		t.addQuotedString("KEYFORMATVERSIONS", k.KeyFormatVersions)
	}
	if k.KeyFormat != "" {
		t.addQuotedString("KEYFORMAT", k.KeyFormat)
	}
	return t.String()
}

// SignalExitEntry marks where a player should cut away to an ad break.
type SignalExitEntry struct {
	SpliceType            SpliceType
	HasDuration           bool
	Duration              float64
	SignalID              string
	PAID                  string
	HasEventID            bool
	EventID               uint32
	UPID                  string
	HasSegmentationTypeID bool
	SegmentationTypeID    uint8
	Flags                 uint32
	// DeviceRestrictions is the 2-bit device_restrictions value (0-3); it is
	// not packed into Flags because it is not a single bit. It is rendered,
	// together with the three single-bit flags, whenever Flags or
	// DeviceRestrictions is nonzero.
	DeviceRestrictions uint8
	HasMaxD            bool
	MaxD               uint64
	HasMinD            bool
	MinD               uint64
}

func (s *SignalExitEntry) render() string {
	t := newTag("#EXT-X-SIGNAL-EXIT")
	if s.HasDuration {
		t.addValue(fmt.Sprintf("%.3f", s.Duration))
	}
	t.addString("SpliceType", s.SpliceType.String())
	if s.SignalID != "" {
		t.addString("SignalId", s.SignalID)
	}
	if s.PAID != "" {
		t.addString("Paid", s.PAID)
	}
	if s.HasEventID {
		t.addNumber("segmentationEventId", uint64(s.EventID))
	}
	if s.UPID != "" {
		t.addString("segmentationUpid", s.UPID)
	}
	if s.HasSegmentationTypeID {
		t.addNumber("segmentationTypeId", uint64(s.SegmentationTypeID))
	}
	if s.Flags != 0 || s.DeviceRestrictions != 0 {
		t.addNumber("webDeliveryAllowedFlag", flagBit(s.Flags, FlagWebDeliveryAllowed))
		t.addNumber("noRegionalBlackoutFlag", flagBit(s.Flags, FlagNoRegionalBlackout))
		t.addNumber("archiveAllowedFlag", flagBit(s.Flags, FlagArchiveAllowed))
		t.addNumber("deviceRestrictions", uint64(s.DeviceRestrictions))
	}
	if s.HasMaxD {
		t.addNumber("MaxD", s.MaxD)
	}
	if s.HasMinD {
		t.addNumber("MinD", s.MinD)
	}
	return t.String()
}

// SignalSpanEntry marks one segment's position and duration within an
// already-entered ad break.
type SignalSpanEntry struct {
	SpliceType  SpliceType
	Position    float64
	HasDuration bool
	Duration    float64
	SignalID    string
	PAID        string
}

func (s *SignalSpanEntry) render() string {
	value := fmt.Sprintf("%.3f", s.Position)
	if s.HasDuration {
		value += fmt.Sprintf("/%.3f", s.Duration)
	}
	t := newTag("#EXT-X-SIGNAL-SPAN").addValue(value)
	t.addString("SpliceType", s.SpliceType.String())
	if s.SignalID != "" {
		t.addString("SignalId", s.SignalID)
	}
	if s.PAID != "" {
		t.addString("Paid", s.PAID)
	}
	return t.String()
}

// SignalReturnEntry marks where a player should cut back from an ad break
// into the program.
type SignalReturnEntry struct {
	SpliceType  SpliceType
	HasDuration bool
	Duration    float64
}

func (s *SignalReturnEntry) render() string {
	t := newTag("#EXT-X-SIGNAL-RETURN")
	if s.HasDuration {
		t.addValue(fmt.Sprintf("%.3f", s.Duration))
	}
	t.addString("SpliceType", s.SpliceType.String())
	return t.String()
}
