package dispatch

// ProgressChan wires d.OnProgress to a buffered channel so a consumer can
// drain progress at its own pace (a UI throttling its own edits, say). The
// returned stop function closes the channel; call it after Dispatch returns.
// Events beyond the buffer block the loop, keeping delivery lossless.
func ProgressChan(d *Dispatcher, buffer int) (events <-chan Progress, stop func()) {
	ch := make(chan Progress, buffer)
	d.OnProgress = func(p Progress) { ch <- p }
	return ch, func() { close(ch) }
}
