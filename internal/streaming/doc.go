/*
Package streaming copies video bodies to HTTP clients without letting a
stalled client hold a connection open forever.

Each chunk is written under a fresh write deadline set through
http.ResponseController and flushed immediately, so a client that stops
reading fails the stream with ErrWriteTimeout once the deadline passes.
When the request context ends the copy stops with ErrClientGone.

	f, _ := os.Open(path)
	defer f.Close()
	n, err := streaming.Stream(r.Context(), w, f, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		return
	}

Writers that do not support deadlines (httptest.ResponseRecorder, for
example) are written to without them.
*/
package streaming
