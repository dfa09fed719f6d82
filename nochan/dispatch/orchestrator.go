// Package dispatch runs the per-message pipeline: group filtering, command
// handling, busy rejection, agent invocation, and reply translation.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nochan-bot/nochan/nochan/command"
	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

const (
	msgBusy          = "上一条消息还在处理中，请稍候，或发送 /stop 中断。"
	msgQueued        = "AI 正在忙，你的请求已排队，请稍候..."
	msgEmptyReply    = "AI 未返回有效回复"
	msgProcessError  = "AI 处理出错，请稍后重试"
	msgInternalError = "处理消息时发生内部错误"
)

// commandHandler is the slice of the command executor the orchestrator needs.
type commandHandler interface {
	TryHandle(ctx context.Context, msg ports.Message) (bool, error)
}

// Orchestrator ties the conversation store, agent client, and command
// executor together. One instance serves all conversations; per-key busy
// tracking lives in its task registry.
type Orchestrator struct {
	store    ports.ConversationStore
	agent    ports.AgentClient
	reply    ports.ReplyFunc
	commands commandHandler
	registry *taskRegistry
	logger   zerolog.Logger
}

// NewOrchestrator wires the pipeline. The command executor is built here so
// /stop reaches the task registry through an injected cancel capability.
func NewOrchestrator(store ports.ConversationStore, agent ports.AgentClient, reply ports.ReplyFunc, logger zerolog.Logger) *Orchestrator {
	registry := newTaskRegistry()
	o := &Orchestrator{
		store:    store,
		agent:    agent,
		reply:    reply,
		registry: registry,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
	o.commands = command.NewExecutor(store, reply, registry.cancel, logger)
	return o
}

// CancelActive requests cancellation of the in-flight invocation for a key.
// Reports whether one was found.
func (o *Orchestrator) CancelActive(key string) bool {
	return o.registry.cancel(key)
}

// Handle processes one inbound message end to end. It never returns an error
// and never panics past this boundary: unexpected failures are logged and
// answered with a generic notice.
func (o *Orchestrator) Handle(ctx context.Context, msg ports.Message) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("key", msg.Key).Msg("Panic while handling message")
			o.send(ctx, msg, msgInternalError)
		}
	}()

	// Group messages must address the bot; private messages are never filtered
	if msg.Scope == ports.ScopeGroup && !msg.AtBot {
		o.logger.Debug().
			Str("key", msg.Key).
			Str("sender", msg.SenderName).
			Str("text", truncate(msg.Text, 100)).
			Msg("Ignored group message without @bot")
		return
	}

	o.logger.Info().
		Str("key", msg.Key).
		Str("sender", msg.SenderName).
		Str("text", truncate(msg.Text, 100)).
		Msg("Processing message")

	handled, err := o.commands.TryHandle(ctx, msg)
	if err != nil {
		o.logger.Error().Err(err).Str("key", msg.Key).Msg("Command handling failed")
		o.send(ctx, msg, msgInternalError)
		return
	}
	if handled {
		return
	}

	o.dispatch(ctx, msg)
}

// dispatch runs the agent leg of the pipeline for a non-command message.
func (o *Orchestrator) dispatch(ctx context.Context, msg ports.Message) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !o.registry.tryBegin(msg.Key, cancel) {
		o.logger.Info().Str("key", msg.Key).Msg("Rejected message: conversation busy")
		o.send(ctx, msg, msgBusy)
		return
	}
	defer o.registry.end(msg.Key)

	conv, err := o.store.GetActive(ctx, msg.Key)
	if err != nil {
		o.logger.Error().Err(err).Str("key", msg.Key).Msg("Failed to load conversation")
		o.send(ctx, msg, msgInternalError)
		return
	}
	if conv == nil {
		conv, err = o.store.Create(ctx, msg.Key)
		if err != nil {
			o.logger.Error().Err(err).Str("key", msg.Key).Msg("Failed to create conversation")
			o.send(ctx, msg, msgInternalError)
			return
		}
	}

	prompt := BuildPrompt(msg)

	// Advisory only: capacity may change before Invoke acquires its slot
	if o.agent.AtCapacity() {
		o.send(ctx, msg, msgQueued)
	}

	res, err := o.agent.Invoke(taskCtx, conv.ContinuationToken, prompt)
	if err != nil {
		// Context cancellation: the user stopped this request, no reply owed
		o.logger.Info().Str("key", msg.Key).Msg("Agent invocation cancelled")
		return
	}

	if conv.ContinuationToken == "" && res.ContinuationToken != "" {
		if err := o.store.SetContinuationToken(ctx, conv.ID, res.ContinuationToken); err != nil {
			o.logger.Error().Err(err).Str("conversation_id", conv.ID).Msg("Failed to store continuation token")
			o.send(ctx, msg, msgInternalError)
			return
		}
	}

	switch {
	case !res.Failed() && res.Content != "":
		o.logger.Info().Str("key", msg.Key).Int("chars", len(res.Content)).Msg("Sending agent reply")
		o.send(ctx, msg, res.Content)
	case !res.Failed():
		o.logger.Warn().Str("key", msg.Key).Msg("Agent returned empty content")
		o.send(ctx, msg, msgEmptyReply)
	default:
		// Detail stays in the logs; the user sees a generic notice
		o.logger.Error().Str("key", msg.Key).Str("detail", res.ErrorDetail).Msg("Agent invocation failed")
		o.send(ctx, msg, msgProcessError)
	}
}

// send delivers a reply, logging delivery failures instead of propagating.
func (o *Orchestrator) send(ctx context.Context, msg ports.Message, text string) {
	if err := o.reply(ctx, msg, text); err != nil {
		o.logger.Warn().Err(err).Str("key", msg.Key).Msg("Failed to send reply")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
