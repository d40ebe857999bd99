package podman

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const frameHeaderLen = 8

// readStream reads an attach/log stream. Without a TTY the runtime frames
// every chunk with an 8-byte header (stream id, 3 zero bytes, big-endian
// length); the frames are joined in arrival order.
func readStream(r io.Reader, tty bool) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxStreamBody))
	if err != nil {
		return "", err
	}
	if tty || !isMultiplexed(data) {
		return string(data), nil
	}
	return string(demux(data)), nil
}

func isMultiplexed(data []byte) bool {
	if len(data) < frameHeaderLen {
		return false
	}
	return data[0] <= 2 && data[1] == 0 && data[2] == 0 && data[3] == 0
}

func demux(data []byte) []byte {
	var out bytes.Buffer
	for len(data) >= frameHeaderLen {
		size := int(binary.BigEndian.Uint32(data[4:frameHeaderLen]))
		data = data[frameHeaderLen:]
		if size > len(data) {
			size = len(data)
		}
		out.Write(data[:size])
		data = data[size:]
	}
	return out.Bytes()
}

// sinceParam converts a logs "since" argument into the unix timestamp the
// API expects.
func sinceParam(since string, now time.Time) (string, error) {
	since = strings.TrimSpace(since)
	if since == "" {
		return "", nil
	}
	if _, err := strconv.ParseInt(since, 10, 64); err == nil {
		return since, nil
	}
	if t, err := time.Parse(time.RFC3339, since); err == nil {
		return strconv.FormatInt(t.Unix(), 10), nil
	}
	if d, err := time.ParseDuration(since); err == nil {
		return strconv.FormatInt(now.Add(-d).Unix(), 10), nil
	}
	return "", fmt.Errorf("invalid since value %q: want a unix timestamp, RFC3339 time or duration", since)
}

// splitCommand turns a command string into argv.
func splitCommand(command string) []string {
	return strings.Fields(command)
}
