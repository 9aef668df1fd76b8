package scte35

// CommandType identifies the splice_command_type field of a
// splice_info_section. Only splice_insert and time_signal are parsed; any
// other value surfaces as ErrUnsupportedCommand.
type CommandType uint8

const (
	CommandSpliceNull   CommandType = 0x00
	CommandSpliceInsert CommandType = 0x05
	CommandTimeSignal   CommandType = 0x06
)

// SpliceTime mirrors splice_time_t: either a 33-bit PTS value or "no time
// specified", meaning the command applies immediately.
type SpliceTime struct {
	TimeSpecified bool
	PTSTime       uint64 // 33 bits, 90kHz clock, valid iff TimeSpecified
}

// BreakDuration mirrors break_duration_t.
type BreakDuration struct {
	AutoReturn bool
	Duration   uint64 // 33 bits, 90kHz clock
}

// SpliceInsertComponent is one entry of splice_insert_t.component_t, present
// only when the insert does not apply to the whole program.
type SpliceInsertComponent struct {
	ComponentTag uint8
	SpliceTime   SpliceTime
}

// SpliceInsert mirrors splice_insert_t.
type SpliceInsert struct {
	EventID          uint32
	Canceled         bool
	OutOfNetwork     bool
	ProgramSplice    bool
	DurationFlag     bool
	SpliceImmediate  bool
	SpliceTime       SpliceTime // valid iff ProgramSplice && !SpliceImmediate
	Components       []SpliceInsertComponent
	BreakDuration    BreakDuration // valid iff DurationFlag
	UniqueProgramID  uint16
	AvailNum         uint8
	AvailsExpected   uint8
}

// TimeSignal mirrors the time_signal command: a single splice_time.
type TimeSignal struct {
	SpliceTime SpliceTime
}

// SegmentationComponent is one entry of a segmentation_descriptor's
// component_tags, present only when the descriptor does not apply to the
// whole program.
type SegmentationComponent struct {
	ComponentTag uint8
	PTSOffset    uint64 // 33 bits
}

// SegmentationDescriptor mirrors segmentation_descriptor_t for tag 0x02,
// the only splice_descriptor this parser decodes fully.
type SegmentationDescriptor struct {
	EventID                  uint32
	Canceled                 bool
	ProgramSegmentation      bool
	DurationFlag             bool
	DeliveryNotRestricted    bool
	WebDeliveryAllowed       bool
	NoRegionalBlackout       bool
	ArchiveAllowed           bool
	DeviceRestrictions       uint8 // 2 bits, valid iff DeliveryNotRestricted == false
	Components               []SegmentationComponent
	Duration                 uint64 // 40 bits, 90kHz clock, valid iff DurationFlag
	UPIDType                  uint8
	UPID                      []byte
	TypeID                    uint8
	SegmentNum                uint8
	SegmentsExpected          uint8
	SubSegmentNum             uint8
	SubSegmentsExpected       uint8
	HasSubSegment             bool // true iff TypeID is 0x34 or 0x36 and the sub-segment fields were present
}

// IsStartSegmentation reports whether typeID identifies a START-class
// segmentation event, per the SCTE35_START_EVENT macro.
func IsStartSegmentation(typeID uint8) bool {
	switch typeID {
	case 0x30, 0x32, 0x34, 0x36:
		return true
	default:
		return false
	}
}

// IsEndSegmentation reports whether typeID identifies an END-class
// segmentation event, per the SCTE35_END_EVENT macro.
func IsEndSegmentation(typeID uint8) bool {
	switch typeID {
	case 0x31, 0x33, 0x35, 0x37:
		return true
	default:
		return false
	}
}

// SpliceInfoSection mirrors splice_info_section_t. SpliceInsert and
// TimeSignal are mutually exclusive: exactly one is set, matching
// CommandType.
type SpliceInfoSection struct {
	TableID              uint8
	SectionSyntaxInd     bool
	PrivateInd           bool
	SectionLength        uint16
	ProtocolVersion       uint8
	EncryptedPacket      bool
	EncryptionAlgorithm  uint8
	PTSAdjustment        uint64 // 33 bits
	CWIndex              uint8
	Tier                 uint16
	SpliceCommandLength  uint16
	CommandType          CommandType
	SpliceInsert         *SpliceInsert
	TimeSignal           *TimeSignal
	SegmentationDescriptors []SegmentationDescriptor
	CRC32                uint32
}
