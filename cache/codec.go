package cache

import (
	"bufio"
	"bytes"
	"net/http"
)

// DecodeResponse converts stored bytes back into an http.Response.
func DecodeResponse(b []byte) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
}

// EncodeResponse converts a response to a byte slice, using the HTTP/1.1
// wire representation of the response. Writing a response consumes its body,
// so the body is restored from the encoded bytes before returning: the caller
// can still send the original response to a client afterwards.
func EncodeResponse(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	clone, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = clone.Body
	return bts, nil
}
