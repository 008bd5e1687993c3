package assessment

// changedMsg reports that the controller's state moved. The screen reads
// the latest snapshot when it arrives, so several changes may share one
// message.
type changedMsg struct{}

// opDoneMsg is sent when a controller operation returns.
type opDoneMsg struct {
	Op  string
	Err error
}
