package transport

// Observer is told about connection activity. Embed NoopObserver to
// implement only part of it.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	FrameReceived(bytes int)
	FrameSent(binary bool, bytes int)
	PipelineFailed()
}

type NoopObserver struct{}

func (NoopObserver) ConnectionOpened() {}
func (NoopObserver) ConnectionClosed() {}
func (NoopObserver) FrameReceived(int) {}
func (NoopObserver) FrameSent(bool, int) {}
func (NoopObserver) PipelineFailed() {}
