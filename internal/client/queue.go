package client

// continuation resumes one request waiting on a refresh. It receives either
// the new access token or the reason the refresh failed.
type continuation func(token string, err error)

// pendingQueue buffers continuations in arrival order. It is not safe for
// concurrent use; the Dispatcher guards it with its mutex.
type pendingQueue struct {
	items []continuation
}

func (q *pendingQueue) enqueue(c continuation) {
	q.items = append(q.items, c)
}

func (q *pendingQueue) len() int {
	return len(q.items)
}

// take detaches the buffered continuations so they can be resumed without
// holding the Dispatcher lock.
func (q *pendingQueue) take() pendingQueue {
	taken := pendingQueue{items: q.items}
	q.items = nil
	return taken
}

// drain resumes every continuation with token, in FIFO order, then empties
// the queue.
func (q *pendingQueue) drain(token string) {
	for _, c := range q.items {
		c(token, nil)
	}
	q.items = nil
}

// fail resumes every continuation with err, in FIFO order, then empties
// the queue.
func (q *pendingQueue) fail(err error) {
	for _, c := range q.items {
		c("", err)
	}
	q.items = nil
}
