package command

import (
	"context"

	"github.com/rs/zerolog"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// HelpText is shown for /help and any unrecognized command.
const HelpText = "nochan 指令列表：\n" +
	"/new  - 创建新会话（清空 AI 上下文）\n" +
	"/stop - 中断当前 AI 思考\n" +
	"/help - 显示本帮助信息\n" +
	"直接发送文字即可与 AI 对话。"

const (
	msgNewConversation = "已创建新会话，AI 上下文已清空。"
	msgStopped         = "已中断当前 AI 思考。"
	msgNothingToStop   = "当前没有进行中的 AI 思考。"
)

// Executor executes recognized commands. The cancel capability is injected
// so /stop reaches the orchestrator's task registry without a dependency
// cycle between command handling and dispatch.
type Executor struct {
	store  ports.ConversationStore
	reply  ports.ReplyFunc
	cancel ports.CancelFunc
	logger zerolog.Logger
}

// NewExecutor creates a command executor.
func NewExecutor(store ports.ConversationStore, reply ports.ReplyFunc, cancel ports.CancelFunc, logger zerolog.Logger) *Executor {
	return &Executor{
		store:  store,
		reply:  reply,
		cancel: cancel,
		logger: logger.With().Str("component", "command").Logger(),
	}
}

// TryHandle executes msg as a command if it is one. Returns true when the
// message was a command (handled, no agent dispatch should follow).
func (e *Executor) TryHandle(ctx context.Context, msg ports.Message) (bool, error) {
	kind, ok := Classify(msg.Text)
	if !ok {
		return false, nil
	}

	e.logger.Info().Str("command", string(kind)).Str("key", msg.Key).Msg("Command received")
	return true, e.execute(ctx, kind, msg)
}

func (e *Executor) execute(ctx context.Context, kind Kind, msg ports.Message) error {
	switch kind {
	case KindNew:
		// Archive current conversation and start a fresh one
		if _, err := e.store.ArchiveActive(ctx, msg.Key); err != nil {
			return err
		}
		if _, err := e.store.Create(ctx, msg.Key); err != nil {
			return err
		}
		e.logger.Info().Str("key", msg.Key).Msg("New conversation created")
		return e.reply(ctx, msg, msgNewConversation)

	case KindStop:
		if e.cancel(msg.Key) {
			return e.reply(ctx, msg, msgStopped)
		}
		return e.reply(ctx, msg, msgNothingToStop)

	default:
		// KindHelp and KindUnknown both elicit the help text
		return e.reply(ctx, msg, HelpText)
	}
}
