/*
Copyright 2024 Numcheck Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package numcheck

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	progressTerminal = 100
	progressTTL      = 24 * time.Hour
)

// ProgressStream publishes worker progress samples over redis pub/sub,
// one channel per task. A redis key holds the last published value so
// late subscribers can read a snapshot and out-of-order samples can be
// rejected.
type ProgressStream struct {
	client redis.UniversalClient
}

func NewProgressStream(client redis.UniversalClient) *ProgressStream {
	return &ProgressStream{client: client}
}

func progressChannel(taskID string) string {
	return fmt.Sprintf("progress:%s", taskID)
}

// publishScript advances the stored progress and publishes in one
// atomic step. Samples at or below the stored value return 0 and are
// never published, which keeps the stream monotonic even with
// concurrent writers.
var publishScript = redis.NewScript(`
	local current = tonumber(redis.call("GET", KEYS[1]) or "-1")
	local next = tonumber(ARGV[1])
	if next <= current then
		return 0
	end
	redis.call("SET", KEYS[1], next, "PX", ARGV[2])
	redis.call("PUBLISH", KEYS[2], ARGV[1])
	return 1
`)

// Publish emits a progress sample for a task. Values outside [0, 100]
// are clamped; stale samples are dropped.
func (p *ProgressStream) Publish(ctx context.Context, taskID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > progressTerminal {
		progress = progressTerminal
	}
	key := progressChannel(taskID)
	return publishScript.Run(ctx, p.client,
		[]string{key, key},
		progress, progressTTL.Milliseconds(),
	).Err()
}

// PublishTerminal publishes the final value for a task. Errors are
// logged by the caller's span; a missed terminal sample only degrades
// the live stream, the task row stays the source of truth.
func (p *ProgressStream) PublishTerminal(ctx context.Context, taskID string) {
	_ = p.Publish(ctx, taskID, progressTerminal)
}

// Snapshot returns the last published progress for a task, or -1 when
// nothing was published yet.
func (p *ProgressStream) Snapshot(ctx context.Context, taskID string) (int, error) {
	val, err := p.client.Get(ctx, progressChannel(taskID)).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return strconv.Atoi(val)
}

// Subscribe streams progress values for a task until the context is
// cancelled or the terminal value arrives. The snapshot is delivered
// first so a late subscriber does not wait for the next live sample.
func (p *ProgressStream) Subscribe(ctx context.Context, taskID string) (<-chan int, error) {
	sub := p.client.Subscribe(ctx, progressChannel(taskID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan int, 8)
	snapshot, err := p.Snapshot(ctx, taskID)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		defer close(out)
		defer func() {
			_ = sub.Close()
		}()

		last := -1
		if snapshot >= 0 {
			last = snapshot
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
			if snapshot >= progressTerminal {
				return
			}
		}

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				value, err := strconv.Atoi(msg.Payload)
				if err != nil || value <= last {
					continue
				}
				last = value
				select {
				case out <- value:
				case <-ctx.Done():
					return
				}
				if value >= progressTerminal {
					return
				}
			}
		}
	}()

	return out, nil
}
