// Package stream encodes frames as JPEG and frames them as parts of a
// multipart/x-mixed-replace (MJPEG) response.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// Boundary separates parts in the stream.
const Boundary = "frame"

// ContentType is the response content type of the stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// ErrEncode is returned when a frame cannot be JPEG-encoded.
var ErrEncode = errors.New("stream: jpeg encode")

// Encoder compresses frames to JPEG.
type Encoder struct {
	quality int
}

// NewEncoder creates an encoder. Quality outside 1-100 uses OpenCV's default.
func NewEncoder(quality int) *Encoder {
	return &Encoder{quality: quality}
}

// Encode returns the JPEG bytes of frame.
func (e *Encoder) Encode(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrEncode)
	}

	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if e.quality >= 1 && e.quality <= 100 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), e.quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, frame)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Part returns jpeg framed as one multipart chunk.
func Part(jpeg []byte) []byte {
	const header = "--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n"
	part := make([]byte, 0, len(header)+len(jpeg)+2)
	part = append(part, header...)
	part = append(part, jpeg...)
	part = append(part, "\r\n"...)
	return part
}

// WritePart writes one framed part (see Part) to w and flushes it when w
// buffers, so the client sees each frame as soon as it is ready.
func WritePart(w io.Writer, part []byte) error {
	if _, err := w.Write(part); err != nil {
		return err
	}
	if bw, ok := w.(*bufio.Writer); ok {
		return bw.Flush()
	}
	return nil
}
