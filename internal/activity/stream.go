package activity

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/gin-contrib/sse"
)

const maxBlockSize = 1 << 20

// ReadMessages reads a text/event-stream from r and calls fn with the data of
// every event, heartbeats included. Events larger than maxBlockSize are
// skipped whole. It returns nil when r reaches EOF.
func ReadMessages(r io.Reader, fn func(event string, data []byte)) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var block bytes.Buffer
	flush := func() error {
		if block.Len() == 0 {
			return nil
		}
		raw := bytes.ReplaceAll(block.Bytes(), []byte("\r\n"), []byte("\n"))
		block.Reset()
		if !bytes.HasSuffix(raw, []byte("\n")) {
			raw = append(raw, '\n')
		}
		raw = append(raw, '\n')
		events, err := sse.Decode(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		for _, e := range events {
			fn(e.Event, eventData(e.Data))
		}
		return nil
	}

	// oversized drops the rest of the current block. midLine is set while a
	// line is longer than the read buffer.
	oversized, midLine := false, false
	for {
		chunk, err := br.ReadSlice('\n')
		if err != nil && err != bufio.ErrBufferFull && err != io.EOF {
			return err
		}

		switch {
		case !midLine && err == nil && len(bytes.TrimRight(chunk, "\r\n")) == 0:
			if oversized {
				oversized = false
				block.Reset()
			} else if ferr := flush(); ferr != nil {
				return ferr
			}
		case oversized:
		case block.Len()+len(chunk) > maxBlockSize:
			oversized = true
			block.Reset()
		default:
			block.Write(chunk)
		}

		midLine = err == bufio.ErrBufferFull
		if err == io.EOF {
			if oversized {
				return nil
			}
			return flush()
		}
	}
}

func eventData(v interface{}) []byte {
	switch d := v.(type) {
	case string:
		return []byte(d)
	case []byte:
		return d
	case nil:
		return nil
	default:
		return []byte(fmt.Sprint(d))
	}
}
