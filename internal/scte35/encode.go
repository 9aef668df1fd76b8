package scte35

// Encode serializes a SpliceInfoSection back to wire bytes, including a
// freshly computed CRC_32. It exists primarily to let callers build test
// fixtures and to support the round-trip bit-exactness property: parsing
// the result of Encode must reproduce the same SpliceInfoSection.
func (s *SpliceInfoSection) Encode() []byte {
	cmd := &bitWriter{}
	switch s.CommandType {
	case CommandSpliceInsert:
		encodeSpliceInsert(cmd, s.SpliceInsert)
	case CommandTimeSignal:
		encodeSpliceTime(cmd, s.TimeSignal.SpliceTime)
	}
	cmdBytes := cmd.Bytes()

	descLoop := &bitWriter{}
	for _, d := range s.SegmentationDescriptors {
		encodeSegmentationDescriptor(descLoop, d)
	}
	descBytes := descLoop.Bytes()

	body := &bitWriter{}
	body.WriteBits(uint64(s.ProtocolVersion), 8)
	body.WriteFlag(s.EncryptedPacket)
	body.WriteBits(uint64(s.EncryptionAlgorithm), 6)
	body.WriteBits(s.PTSAdjustment, 33)
	body.WriteBits(uint64(s.CWIndex), 8)
	body.WriteBits(uint64(s.Tier), 12)
	body.WriteBits(uint64(len(cmdBytes)), 12)
	body.WriteBits(uint64(s.CommandType), 8)
	body.WriteBytes(cmdBytes)
	body.WriteBits(uint64(len(descBytes)), 16)
	body.WriteBytes(descBytes)
	bodyBytes := body.Bytes()

	sectionLength := len(bodyBytes) + 4 // + trailing CRC_32

	head := &bitWriter{}
	head.WriteBits(uint64(s.TableID), 8)
	head.WriteFlag(s.SectionSyntaxInd)
	head.WriteFlag(s.PrivateInd)
	head.WriteBits(0, 2) // reserved
	head.WriteBits(uint64(sectionLength), 12)
	head.WriteBytes(bodyBytes)

	out := head.Bytes()
	crc := mpegCRC32(out)
	out = append(out,
		byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	return out
}

func encodeSpliceTime(w *bitWriter, st SpliceTime) {
	w.WriteFlag(st.TimeSpecified)
	if st.TimeSpecified {
		w.WriteBits(0x3F, 6) // reserved
		w.WriteBits(st.PTSTime, 33)
	} else {
		w.WriteBits(0x7F, 7) // reserved
	}
}

func encodeBreakDuration(w *bitWriter, bd BreakDuration) {
	w.WriteFlag(bd.AutoReturn)
	w.WriteBits(0x3F, 6) // reserved
	w.WriteBits(bd.Duration, 33)
}

func encodeSpliceInsert(w *bitWriter, ins *SpliceInsert) {
	w.WriteBits(uint64(ins.EventID), 32)
	w.WriteFlag(ins.Canceled)
	w.WriteBits(0x7F, 7) // reserved
	if ins.Canceled {
		return
	}
	w.WriteFlag(ins.OutOfNetwork)
	w.WriteFlag(ins.ProgramSplice)
	w.WriteFlag(ins.DurationFlag)
	w.WriteFlag(ins.SpliceImmediate)
	w.WriteBits(0xF, 4) // reserved

	if ins.ProgramSplice && !ins.SpliceImmediate {
		encodeSpliceTime(w, ins.SpliceTime)
	}
	if !ins.ProgramSplice {
		w.WriteBits(uint64(len(ins.Components)), 8)
		for _, c := range ins.Components {
			w.WriteBits(uint64(c.ComponentTag), 8)
			if !ins.SpliceImmediate {
				encodeSpliceTime(w, c.SpliceTime)
			}
		}
	}
	if ins.DurationFlag {
		encodeBreakDuration(w, ins.BreakDuration)
	}
	w.WriteBits(uint64(ins.UniqueProgramID), 16)
	w.WriteBits(uint64(ins.AvailNum), 8)
	w.WriteBits(uint64(ins.AvailsExpected), 8)
}

func encodeSegmentationDescriptor(w *bitWriter, d SegmentationDescriptor) {
	body := &bitWriter{}
	body.WriteBits(uint64(d.EventID), 32)
	body.WriteFlag(d.Canceled)
	body.WriteBits(0x7F, 7) // reserved
	if !d.Canceled {
		body.WriteFlag(d.ProgramSegmentation)
		body.WriteFlag(d.DurationFlag)
		body.WriteFlag(d.DeliveryNotRestricted)
		if !d.DeliveryNotRestricted {
			body.WriteFlag(d.WebDeliveryAllowed)
			body.WriteFlag(d.NoRegionalBlackout)
			body.WriteFlag(d.ArchiveAllowed)
			body.WriteBits(uint64(d.DeviceRestrictions), 2)
		} else {
			body.WriteBits(0x1F, 5) // reserved
		}
		if !d.ProgramSegmentation {
			body.WriteBits(uint64(len(d.Components)), 8)
			for _, c := range d.Components {
				body.WriteBits(uint64(c.ComponentTag), 8)
				body.WriteBits(0x7F, 7) // reserved
				body.WriteBits(c.PTSOffset, 33)
			}
		}
		if d.DurationFlag {
			body.WriteBits(d.Duration, 40)
		}
		body.WriteBits(uint64(d.UPIDType), 8)
		body.WriteBits(uint64(len(d.UPID)), 8)
		body.WriteBytes(d.UPID)
		body.WriteBits(uint64(d.TypeID), 8)
		body.WriteBits(uint64(d.SegmentNum), 8)
		body.WriteBits(uint64(d.SegmentsExpected), 8)
		if d.TypeID == 0x34 || d.TypeID == 0x36 {
			body.WriteBits(uint64(d.SubSegmentNum), 8)
			body.WriteBits(uint64(d.SubSegmentsExpected), 8)
		}
	}
	bodyBytes := body.Bytes()

	w.WriteBits(segmentationDescriptorTag, 8)
	w.WriteBits(uint64(len(bodyBytes))+4, 8)
	w.WriteBits(cueIdentifier, 32)
	w.WriteBytes(bodyBytes)
}
