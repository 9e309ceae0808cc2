/*
Package streaming writes response bodies to slow or disconnecting clients
without holding server resources indefinitely.

A transcoded image is fully buffered before it is sent, so there is no
reader to copy from. WriteBody splits the buffer into chunks and, through
http.ResponseController, extends the connection's write deadline before each
chunk:

	n, err := streaming.WriteBody(r.Context(), w, body, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		return
	}

A client that stops reading trips the deadline and WriteBody returns an
error wrapping ErrWriteTimeout. A cancelled request context between chunks
yields ErrClientGone. Writers that do not support deadlines or flushing
(httptest.ResponseRecorder, for example) are written to without them.

Middleware that wraps http.ResponseWriter must expose Unwrap so that the
response controller can reach the underlying connection.
*/
package streaming
