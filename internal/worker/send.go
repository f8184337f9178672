package worker

// Send delivers value on ch unless dying closes first, in which case it
// returns ErrStopped. A consumer that went away therefore never wedges a
// stopped worker. Once dying is closed nothing is delivered, even when ch
// has room.
func Send[T any](dying <-chan struct{}, ch chan<- T, value T) error {
	select {
	case <-dying:
		return ErrStopped
	default:
	}
	select {
	case ch <- value:
		return nil
	case <-dying:
		return ErrStopped
	}
}
