// Package signal adapts parsed SCTE-35 sections into the cue events the
// alignment handler understands, decoupling the wire format from the
// pipeline's internal timing model.
package signal

import "hls-packager/internal/scte35"

// Scte35Event is the minimal ad-signaling fact the cue alignment handler
// needs out of a splice_info_section: when it starts, how long it runs, and
// the single segmentation descriptor driving it.
type Scte35Event struct {
	StartTimePTS int64 // 90kHz clock
	DurationPTS  int64 // 90kHz clock, 0 if unknown
	Descriptor   scte35.SegmentationDescriptor
}

// EventsFromSection produces one Scte35Event per retained segmentation
// descriptor in section. pcrPTS is the program clock reference observed
// when the section arrived; it stands in for the splice time whenever the
// command does not carry an explicit one (splice_immediate_flag, or a
// time_signal with time_specified_flag == 0).
func EventsFromSection(section *scte35.SpliceInfoSection, pcrPTS int64) []Scte35Event {
	if len(section.SegmentationDescriptors) == 0 {
		return nil
	}

	startPTS := commandStartPTS(section, pcrPTS)

	events := make([]Scte35Event, 0, len(section.SegmentationDescriptors))
	for _, d := range section.SegmentationDescriptors {
		ev := Scte35Event{
			StartTimePTS: startPTS,
			Descriptor:   d,
		}
		if d.DurationFlag {
			ev.DurationPTS = int64(d.Duration)
		} else if section.CommandType == scte35.CommandSpliceInsert &&
			section.SpliceInsert != nil && section.SpliceInsert.DurationFlag {
			ev.DurationPTS = int64(section.SpliceInsert.BreakDuration.Duration)
		}
		events = append(events, ev)
	}
	return events
}

func commandStartPTS(section *scte35.SpliceInfoSection, pcrPTS int64) int64 {
	var st scte35.SpliceTime
	switch section.CommandType {
	case scte35.CommandSpliceInsert:
		if section.SpliceInsert == nil {
			return pcrPTS
		}
		st = section.SpliceInsert.SpliceTime
	case scte35.CommandTimeSignal:
		if section.TimeSignal == nil {
			return pcrPTS
		}
		st = section.TimeSignal.SpliceTime
	default:
		return pcrPTS
	}
	if !st.TimeSpecified {
		return pcrPTS
	}
	return int64(section.PTSAdjustment) + int64(st.PTSTime)
}
