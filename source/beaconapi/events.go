// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package beaconapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/source"
)

// eventBuffer is the number of events buffered ahead of the consumer.
const eventBuffer = 16

// Subscribe connects to the server-sent event stream of the first endpoint
// that accepts the connection.
func (c *Client) Subscribe(ctx context.Context, topics []source.Topic) (*source.Subscription, error) {
	names := make([]string, len(topics))
	for i, topic := range topics {
		names[i] = string(topic)
	}
	path := "/eth/v1/events?topics=" + strings.Join(names, ",")

	var resp *http.Response
	err := c.retry(ctx, path, func(ctx context.Context, endpoint string) error {
		var err error
		resp, err = c.do(ctx, endpoint+path, "text/event-stream")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %v; %w", names, err)
	}

	sub := source.NewSubscription(eventBuffer)
	go func() {
		defer resp.Body.Close()
		err := c.readEvents(ctx, resp.Body, sub)
		if ctx.Err() != nil {
			err = nil
		}
		sub.Close(err)
	}()
	return sub, nil
}

// readEvents parses the event stream until it ends. Events are separated by
// blank lines; only the event and data fields are interpreted.
func (c *Client) readEvents(ctx context.Context, body io.Reader, sub *source.Subscription) error {
	scanner := bufio.NewScanner(body)
	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" && data.Len() > 0 {
				event, ok, err := parseEvent(name, data.String())
				if err != nil {
					c.log.Warn().Err(err).Str("event", name).Msg("ignoring malformed event")
				} else if ok && !sub.Send(ctx, event) {
					return nil
				}
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment, used as keep-alive
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func parseEvent(name string, data string) (source.Event, bool, error) {
	switch source.Topic(name) {
	case source.TopicHead:
		var head headEvent
		if err := json.Unmarshal([]byte(data), &head); err != nil {
			return source.Event{}, false, err
		}
		return source.Event{Topic: source.TopicHead, Epoch: gindex.EpochOfSlot(head.Slot)}, true, nil
	case source.TopicFinalizedCheckpoint:
		var checkpoint finalizedCheckpointEvent
		if err := json.Unmarshal([]byte(data), &checkpoint); err != nil {
			return source.Event{}, false, err
		}
		return source.Event{Topic: source.TopicFinalizedCheckpoint, Epoch: checkpoint.Epoch}, true, nil
	}
	return source.Event{}, false, nil
}
