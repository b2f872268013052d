package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/service"
)

// Executor answers one free-text operator command.
type Executor interface {
	Execute(ctx context.Context, text string) service.Reply
}

// RemoteMessage is an operator message. Plain-text payloads are accepted too.
type RemoteMessage struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// RemoteReply is what goes back on the outbound topic.
type RemoteReply struct {
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind"`
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

// RemoteChannel is the operator chat link: commands arrive on one topic
// and replies and announcements leave on another. Commands are executed on
// the channel's own goroutine so a handler never blocks the broker session.
type RemoteChannel struct {
	ps       PubSub
	inTopic  string
	outTopic string
	exec     Executor
	log      *logger.Logger
	inbox    chan RemoteMessage
}

func NewRemoteChannel(ps PubSub, inTopic, outTopic string, exec Executor, log *logger.Logger) *RemoteChannel {
	if log == nil {
		log = logger.Nop()
	}
	return &RemoteChannel{
		ps:       ps,
		inTopic:  inTopic,
		outTopic: outTopic,
		exec:     exec,
		log:      log,
		inbox:    make(chan RemoteMessage, 16),
	}
}

// Start subscribes to the inbound topic.
func (r *RemoteChannel) Start() error {
	return r.ps.Subscribe(r.inTopic, r.receive)
}

func (r *RemoteChannel) receive(_ string, payload []byte) {
	msg := decodeRemote(payload)
	select {
	case r.inbox <- msg:
	default:
		r.log.Warnw("remote_command_dropped", "id", msg.ID)
	}
}

// Run executes queued commands until ctx is canceled.
func (r *RemoteChannel) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.inbox:
			reply := r.exec.Execute(ctx, msg.Text)
			r.log.Infow("remote_command", "id", msg.ID, "kind", reply.Kind, "ok", reply.OK)
			if err := r.send(ctx, RemoteReply{ID: msg.ID, Kind: reply.Kind, OK: reply.OK, Text: reply.Text}); err != nil {
				r.log.Warnw("remote_reply_failed", "id", msg.ID, "error", err)
			}
		}
	}
}

// Say sends an unsolicited message, e.g. the startup greeting.
func (r *RemoteChannel) Say(ctx context.Context, text string) error {
	return r.send(ctx, RemoteReply{Kind: "announcement", OK: true, Text: text})
}

func (r *RemoteChannel) send(ctx context.Context, reply RemoteReply) error {
	b, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	return r.ps.Publish(ctx, r.outTopic, b)
}

func decodeRemote(payload []byte) RemoteMessage {
	var msg RemoteMessage
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(payload, &msg) == nil {
		return msg
	}
	return RemoteMessage{Text: trimmed}
}
