package sync

// Recorder receives instrumentation events from the center. Methods are
// called outside the center's lock and must not block.
type Recorder interface {
	FrameReceived(event string)
	FrameDropped(reason string)
	ReconnectScheduled()
	RefreshFailed()
	MutationFailed(op string)
	StateChanged(state string)
	UnreadPublished(n int)
}

type nopRecorder struct{}

func (nopRecorder) FrameReceived(string)  {}
func (nopRecorder) FrameDropped(string)   {}
func (nopRecorder) ReconnectScheduled()   {}
func (nopRecorder) RefreshFailed()        {}
func (nopRecorder) MutationFailed(string) {}
func (nopRecorder) StateChanged(string)   {}
func (nopRecorder) UnreadPublished(int)   {}
