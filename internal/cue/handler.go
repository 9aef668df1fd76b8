package cue

import (
	"fmt"
	"sort"
	"sync"
)

// streamData holds everything the handler tracks for one input stream.
type streamData struct {
	info       StreamInfo
	samples    []StreamData // buffered video/audio/text samples awaiting dispatch
	cues       []*CueEvent  // cues pushed to this stream, not yet dispatched
	state      StreamState
	maxTextEnd float64 // latest text sample end time seen, seconds
	flushed    bool
}

// timeInSeconds converts a raw timestamp in timeScale units to seconds.
// The reference implementation computed this as
// double(scaled_time / time_scale), truncating the fractional part before
// the cast to double ever ran; this version casts first, matching the
// intended double(scaled_time) / time_scale semantics.
func timeInSeconds(scaledTime int64, timeScale uint32) float64 {
	if timeScale == 0 {
		return 0
	}
	return float64(scaledTime) / float64(timeScale)
}

// sampleTimeSeconds applies the per-stream-type time convention: video and
// audio samples are keyed by PTS (audio at its midpoint, to better center
// it against a video key frame), text samples by their start time.
func sampleTimeSeconds(st StreamType, data StreamData, timeScale uint32) float64 {
	switch st {
	case StreamVideo:
		return timeInSeconds(data.MediaSample.PTS, timeScale)
	case StreamAudio:
		mid := data.MediaSample.PTS + data.MediaSample.Duration/2
		return timeInSeconds(mid, timeScale)
	case StreamText:
		return timeInSeconds(data.TextSample.StartTime, timeScale)
	default:
		return 0
	}
}

// CueAlignmentHandler merges samples from every input stream of a program
// and rewrites the SCTE-35 signals it sees into a
// single GOP-aligned sequence of CueEvents, dispatched identically to every
// stream.
//
// There are two alignment modes, chosen automatically once all streams have
// reported their StreamInfo: video-led, where a key frame on the video
// stream promotes the pending cue to its own PTS; and no-video, where every
// stream simply waits until all of them have reached the hint and then
// pulls the next cue directly off the SyncPointQueue.
type CueAlignmentHandler struct {
	mu          sync.Mutex
	syncPoints  *SyncPointQueue
	ownQueue    SyncPointQueue // backs syncPoints when the caller supplies none
	streams     []*streamData
	videoIndex  int // -1 if there is no video stream
	hint        float64
	dispatch    DispatchFunc
	initialized bool
}

// NewCueAlignmentHandler constructs a handler for numStreams input streams.
// If syncPoints is nil, the handler owns a fresh queue by value rather than
// reaching for a heap-allocated one nothing else references.
func NewCueAlignmentHandler(numStreams int, syncPoints *SyncPointQueue, dispatch DispatchFunc) *CueAlignmentHandler {
	h := &CueAlignmentHandler{
		streams:    make([]*streamData, numStreams),
		videoIndex: -1,
		dispatch:   dispatch,
	}
	if syncPoints == nil {
		h.ownQueue.cond = sync.NewCond(&h.ownQueue.mu)
		syncPoints = &h.ownQueue
	}
	h.syncPoints = syncPoints
	for i := range h.streams {
		h.streams[i] = &streamData{}
	}
	return h
}

// Cancel cancels the shared sync-point queue: every Process call blocked
// waiting on it, and every later one that needs to wait on it, returns
// ErrCancelled.
func (h *CueAlignmentHandler) Cancel() {
	h.syncPoints.Cancel()
}

// Process routes one unit of stream data through the handler. It is safe to
// call concurrently from one goroutine per stream index.
func (h *CueAlignmentHandler) Process(data StreamData) error {
	switch data.Type {
	case DataStreamInfo:
		return h.onStreamInfo(data)
	case DataScte35Event:
		return h.onSignal(data)
	case DataMediaSample, DataTextSample:
		return h.onSample(data)
	case DataFlush:
		return h.onFlush(data.StreamIndex)
	default:
		return fmt.Errorf("cue: unknown StreamData type %d", data.Type)
	}
}

func (h *CueAlignmentHandler) onStreamInfo(data StreamData) error {
	h.mu.Lock()
	h.streams[data.StreamIndex].info = *data.Info
	if data.Info.StreamType == StreamVideo {
		h.videoIndex = data.StreamIndex
	}
	allSet := true
	for _, s := range h.streams {
		if s.info.TimeScale == 0 {
			allSet = false
			break
		}
	}
	h.mu.Unlock()

	if err := h.dispatch(data.StreamIndex, data); err != nil {
		return err
	}
	if allSet && !h.initialized {
		h.mu.Lock()
		h.initialized = true
		h.hint = h.syncPoints.GetHint(-1)
		h.mu.Unlock()
	}
	return nil
}

// onSignal gates a segmentation event by the stream's current state --
// START events are accepted only InProgram, END events only InAd -- wraps
// it into a CueEvent, and adds it to the shared sync-point queue. It does
// not reach any stream's own cue queue yet: that only happens once it is
// promoted to a key frame (onVideoSample) or pulled off the queue in
// no-video mode (onNonVideoSample), both via useNewSyncPoint.
func (h *CueAlignmentHandler) onSignal(data StreamData) error {
	sig := data.Scte35Event
	typeID := sig.Descriptor.TypeID

	h.mu.Lock()
	st := h.streams[data.StreamIndex].state
	h.mu.Unlock()

	isStart := scte35TypeIsStart(typeID)
	isEnd := scte35TypeIsEnd(typeID)
	if isStart && st != StateInProgram {
		return nil
	}
	if isEnd && st != StateInAd {
		return nil
	}
	if !isStart && !isEnd {
		return nil
	}

	// Scte35Event times are always on the 90kHz PTS clock, whatever the
	// time scale of the stream the signal arrived on.
	const scte35TimeScale = 90000
	event := &CueEvent{
		Type:          CueEventScte35,
		TimeInSeconds: timeInSeconds(sig.StartTimePTS, scte35TimeScale),
		Duration:      timeInSeconds(sig.DurationPTS, scte35TimeScale),
		Signal:        sig,
	}
	h.syncPoints.Add(event)
	h.mu.Lock()
	h.hint = h.syncPoints.GetHint(-1)
	h.mu.Unlock()
	return nil
}

func (h *CueAlignmentHandler) onSample(data StreamData) error {
	h.mu.Lock()
	s := h.streams[data.StreamIndex]
	if data.Type == DataTextSample {
		endSeconds := timeInSeconds(data.TextSample.EndTime, s.info.TimeScale)
		if endSeconds > s.maxTextEnd {
			s.maxTextEnd = endSeconds
		}
	}
	isVideo := s.info.StreamType == StreamVideo
	h.mu.Unlock()

	if isVideo {
		return h.onVideoSample(data)
	}
	return h.onNonVideoSample(data)
}

// onVideoSample promotes the pending cue to the next key frame at or past
// the current hint, distributes it to every stream via useNewSyncPoint,
// dispatches this stream's own copy of it, flips the stream's state, then
// dispatches the sample itself.
func (h *CueAlignmentHandler) onVideoSample(data StreamData) error {
	h.mu.Lock()
	s := h.streams[data.StreamIndex]
	sampleTime := sampleTimeSeconds(StreamVideo, data, s.info.TimeScale)
	hint := h.hint
	h.mu.Unlock()

	if data.MediaSample.IsKeyFrame && sampleTime >= hint {
		cue, ok := h.syncPoints.PromoteAt(sampleTime)
		if !ok {
			if h.syncPoints.HasMore(-1) {
				return ErrNotGopAligned
			}
		} else {
			if err := h.useNewSyncPoint(cue); err != nil {
				return err
			}
			if err := h.popAndDispatchOwnCue(data.StreamIndex); err != nil {
				return err
			}
		}
	}
	return h.dispatch(data.StreamIndex, data)
}

// popAndDispatchOwnCue dispatches and removes the single cue useNewSyncPoint
// just pushed onto streamIndex's own queue. Only a video stream calls this
// directly: it never buffers samples, so runThroughSamples has nothing to
// interleave the cue against and leaves it sitting in the queue.
func (h *CueAlignmentHandler) popAndDispatchOwnCue(streamIndex int) error {
	h.mu.Lock()
	s := h.streams[streamIndex]
	if len(s.cues) == 0 {
		h.mu.Unlock()
		return nil
	}
	cue := s.cues[0]
	s.cues = s.cues[1:]
	h.mu.Unlock()

	if err := h.dispatchCue(streamIndex, cue); err != nil {
		return err
	}
	h.updateStateForCue(streamIndex, cue)
	return nil
}

// onNonVideoSample buffers the sample (bounded by maxBufferedSamples),
// merge-sorts it against the stream's pending cues, and lets
// runThroughSamples dispatch whatever is now safe to release.
func (h *CueAlignmentHandler) onNonVideoSample(data StreamData) error {
	h.mu.Lock()
	s := h.streams[data.StreamIndex]
	if len(s.samples) >= maxBufferedSamples {
		h.mu.Unlock()
		return ErrBackpressureExceeded
	}
	s.samples = append(s.samples, data)
	noVideo := h.videoIndex < 0
	hint := h.hint
	h.mu.Unlock()

	if noVideo && h.everyoneWaitingAtHint() {
		cue, ok := h.syncPoints.GetNext(hint)
		if !ok {
			return ErrCancelled
		}
		if err := h.useNewSyncPoint(cue); err != nil {
			return err
		}
	}
	return h.runThroughSamples(data.StreamIndex)
}

// runThroughSamples dispatches every buffered sample on streamIndex whose
// time is before the stream's earliest pending cue, in arrival order, then
// leaves the rest buffered.
func (h *CueAlignmentHandler) runThroughSamples(streamIndex int) error {
	h.mu.Lock()
	s := h.streams[streamIndex]
	timeScale := s.info.TimeScale
	streamType := s.info.StreamType

	cutoff := float64(-1)
	if len(s.cues) > 0 {
		cutoff = s.cues[0].TimeInSeconds
	}

	keep := s.samples[:0:0]
	var dispatchable []StreamData
	for _, sample := range s.samples {
		t := sampleTimeSeconds(streamType, sample, timeScale)
		if cutoff >= 0 && t >= cutoff {
			keep = append(keep, sample)
			continue
		}
		dispatchable = append(dispatchable, sample)
	}
	s.samples = keep
	h.mu.Unlock()

	for _, sample := range dispatchable {
		if err := h.dispatch(streamIndex, sample); err != nil {
			return err
		}
	}

	h.mu.Lock()
	if len(s.cues) > 0 && (len(dispatchable) > 0 || len(s.samples) > 0) {
		// The cutoff cue is now the earliest remaining sample's boundary;
		// pop it once every buffered sample before it has cleared.
		if len(s.samples) == 0 || sampleTimeSeconds(streamType, s.samples[0], timeScale) >= s.cues[0].TimeInSeconds {
			cue := s.cues[0]
			s.cues = s.cues[1:]
			h.mu.Unlock()
			if err := h.dispatch(streamIndex, cueStreamData(streamIndex, cue)); err != nil {
				return err
			}
			h.updateStateForCue(streamIndex, cue)
			h.mu.Lock()
		}
	}
	h.mu.Unlock()
	return nil
}

// updateStateForCue applies a dispatched cue's START/END classification to
// a single stream's ad state. Non-SCTE-35 cues (placement opportunities)
// leave state untouched.
func (h *CueAlignmentHandler) updateStateForCue(streamIndex int, cue *CueEvent) {
	if cue.Type != CueEventScte35 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.streams[streamIndex]
	if scte35TypeIsStart(cue.Signal.Descriptor.TypeID) {
		s.state = StateInAd
	} else if scte35TypeIsEnd(cue.Signal.Descriptor.TypeID) {
		s.state = StateInProgram
	}
}

// useNewSyncPoint distributes a cue that has already been removed from the
// shared queue -- by PromoteAt in video-led mode, or GetNext in no-video
// mode -- to every stream's own cue queue, re-derives the shared hint past
// the cue's now-final time, and lets each stream's runThroughSamples
// interleave it with whatever it already has buffered. It never adds to
// the shared queue itself: a cue is added exactly once, in onSignal, when
// it is first seen.
func (h *CueAlignmentHandler) useNewSyncPoint(cue *CueEvent) error {
	h.mu.Lock()
	h.hint = h.syncPoints.GetHint(cue.TimeInSeconds)
	for _, s := range h.streams {
		s.cues = append(s.cues, cue.Clone())
	}
	h.mu.Unlock()

	for i := range h.streams {
		if err := h.runThroughSamples(i); err != nil {
			return err
		}
	}
	return nil
}

// everyoneWaitingAtHint reports whether every stream's most recently
// buffered sample has reached or passed the current hint -- the condition
// that lets a no-video program safely pull the next cue off the shared
// queue without any stream racing ahead of it.
func (h *CueAlignmentHandler) everyoneWaitingAtHint() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.streams {
		if len(s.samples) == 0 {
			return false
		}
		last := s.samples[len(s.samples)-1]
		t := sampleTimeSeconds(s.info.StreamType, last, s.info.TimeScale)
		if t < h.hint {
			return false
		}
	}
	return true
}

// onFlush drains a stream's buffered samples and pending cues at end of
// stream. On a text stream, a pending cue at or past maxTextEnd (the end of
// its last text sample) is dropped rather than dispatched.
func (h *CueAlignmentHandler) onFlush(streamIndex int) error {
	h.mu.Lock()
	s := h.streams[streamIndex]
	s.flushed = true
	samples := s.samples
	s.samples = nil
	h.mu.Unlock()

	sort.SliceStable(samples, func(i, j int) bool {
		return sampleTimeSeconds(s.info.StreamType, samples[i], s.info.TimeScale) <
			sampleTimeSeconds(s.info.StreamType, samples[j], s.info.TimeScale)
	})
	for _, sample := range samples {
		if err := h.dispatch(streamIndex, sample); err != nil {
			return err
		}
	}

	h.mu.Lock()
	remaining := s.cues
	s.cues = nil
	h.mu.Unlock()
	for _, cue := range remaining {
		if s.info.StreamType == StreamText && cue.TimeInSeconds >= s.maxTextEnd {
			continue
		}
		if err := h.dispatch(streamIndex, cueStreamData(streamIndex, cue)); err != nil {
			return err
		}
	}

	if h.allFlushed() {
		for h.syncPoints.HasMore(h.hint) {
			cue, ok := h.syncPoints.GetNext(h.hint)
			if !ok {
				return ErrCancelled
			}
			if err := h.useNewSyncPoint(cue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *CueAlignmentHandler) allFlushed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.streams {
		if !s.flushed {
			return false
		}
	}
	return true
}

func (h *CueAlignmentHandler) dispatchCue(streamIndex int, cue *CueEvent) error {
	return h.dispatch(streamIndex, cueStreamData(streamIndex, cue))
}

func cueStreamData(streamIndex int, cue *CueEvent) StreamData {
	sd := StreamData{Type: DataScte35Event, StreamIndex: streamIndex}
	if cue.Type == CueEventScte35 {
		sd.Scte35Event = cue.Signal
	}
	return sd
}

func scte35TypeIsStart(typeID uint8) bool {
	switch typeID {
	case 0x30, 0x32, 0x34, 0x36:
		return true
	default:
		return false
	}
}

func scte35TypeIsEnd(typeID uint8) bool {
	switch typeID {
	case 0x31, 0x33, 0x35, 0x37:
		return true
	default:
		return false
	}
}
