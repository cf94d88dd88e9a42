// Package chatcmder provides the chat command for interactive streaming
// conversations with the travel assistant backend.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlaschat/atlas/pkg/backend"
	"github.com/atlaschat/atlas/pkg/chat"
	"github.com/atlaschat/atlas/pkg/cliui"
	"github.com/atlaschat/atlas/pkg/config"
	"github.com/atlaschat/atlas/pkg/dotdir"
	"github.com/atlaschat/atlas/pkg/eventstream"
	kafkapub "github.com/atlaschat/atlas/pkg/eventstream/kafka"
	"github.com/atlaschat/atlas/pkg/eventstream/nop"
	"github.com/atlaschat/atlas/pkg/logger"
	"github.com/atlaschat/atlas/pkg/transcript"
	"github.com/atlaschat/atlas/pkg/worker"
)

var (
	userPrompt      = cliui.PromptStyle.Render("you> ")
	assistantPrompt = cliui.DimStyle.Render("assistant> ")
	reasoningPrompt = cliui.DimStyle.Render("reasoning> ")
)

type chatCommander struct {
	apiTarget string
	mode      string
	model     string

	maxAttempts        uint
	baseDelayMs        uint
	attemptTimeoutSecs uint

	publishEnabled bool
	brokers        []string
	topic          string

	configDir string
	logFile   string
	debug     bool

	logger *zap.Logger
	slog   *slog.Logger
}

const chatLongDesc string = `Start an interactive streaming chat session with the travel assistant.

Messages stream back over SSE: the assistant's reasoning trace renders
dimmed as it arrives, followed by the answer tokens. Dropped connections
are retried with exponential backoff and the partial reply is kept.

If a pinned session exists (from "atlas sessions use"), the conversation
resumes in that backend session. Otherwise a new session is created and
pinned for subsequent invocations.

During a reply, Ctrl+C stops the current generation without exiting.

In-session commands:
  /mode <direct|react|plan>   Switch conversation mode
  /new                        Start a fresh session
  /exit                       Quit

Examples:
  atlas chat
  atlas chat --mode react
  atlas chat --api-target http://localhost:8000`

const chatShortDesc string = "Interactive streaming chat with the travel assistant"

// chatFlags is the flag registry for the chat command. Flag names,
// shorthands, and viper keys live here so they cannot drift if another
// command grows the same flag.
var chatFlags = config.FlagSet{
	config.FlagAPITarget: {
		Name:        "api-target",
		Shorthand:   "t",
		ViperKey:    "client.api_target",
		Description: "Backend API server URL",
	},
	config.FlagMode: {
		Name:        "mode",
		Shorthand:   "M",
		ViperKey:    "chat.mode",
		Description: "Conversation mode (direct, react, plan)",
	},
	config.FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "chat.model",
		Description: "Model id (defaults to the session's model)",
	},
	config.FlagMaxAttempts: {
		Name:        "max-attempts",
		ViperKey:    "stream.max_attempts",
		Description: "Reconnection attempt budget per turn",
	},
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, chatFlags, []string{
				config.FlagAPITarget,
				config.FlagMode,
				config.FlagModel,
				config.FlagMaxAttempts,
			})

			cmder.apiTarget = v.GetString("client.api_target")
			cmder.mode = v.GetString("chat.mode")
			cmder.model = v.GetString("chat.model")
			cmder.maxAttempts = v.GetUint("stream.max_attempts")
			cmder.baseDelayMs = v.GetUint("stream.base_delay_ms")
			cmder.attemptTimeoutSecs = v.GetUint("stream.attempt_timeout_secs")
			cmder.publishEnabled = v.GetBool("event_stream.enabled")
			cmder.brokers = v.GetStringSlice("event_stream.brokers")
			cmder.topic = v.GetString("event_stream.topic")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, chatFlags, config.FlagMode, &cmder.mode)
	config.AddStringFlag(cmd, chatFlags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, chatFlags, config.FlagMaxAttempts, &cmder.maxAttempts)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write turn lifecycle logs as JSON to this file")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	c.slog = logger.Nop()
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.slog = logger.Multi(
			logger.New(logger.WithPretty(true), logger.WithWriter(os.Stderr), logger.WithDebug(c.debug)),
			logger.New(logger.WithJSON(true), logger.WithWriter(f), logger.WithDebug(true)),
		)
	}

	if _, err := parseMode(c.mode); err != nil {
		return err
	}

	ctx := context.Background()
	api := backend.New(c.apiTarget)

	if err := cliui.Step(os.Stdout, "connecting to "+c.apiTarget, func() error {
		return api.Health(ctx)
	}); err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}

	sessionID, err := c.ensureSession(ctx, api)
	if err != nil {
		return err
	}

	if c.model != "" {
		if err := api.SetSessionModel(ctx, sessionID, c.model); err != nil {
			return fmt.Errorf("setting session model: %w", err)
		}
	}

	// Bookkeeping pipeline: transcript cache plus optional Kafka publishing,
	// drained off the interactive path by the worker pool.
	var pub eventstream.Publisher = nop.NewPublisher()
	if c.publishEnabled {
		pub = kafkapub.NewPublisher(c.brokers, c.topic)
	}
	defer pub.Close()

	store := transcript.NewMemory()
	defer store.Close()

	pool, err := worker.NewPool(&worker.Config{
		Transcripts: store,
		Publisher:   pub,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("starting turn workers: %w", err)
	}
	defer pool.Close()

	manager := chat.NewManager(
		chat.NewHTTPTransport(c.apiTarget),
		chat.Options{
			MaxAttempts:    int(c.maxAttempts),
			BaseDelay:      time.Duration(c.baseDelayMs) * time.Millisecond,
			AttemptTimeout: time.Duration(c.attemptTimeoutSecs) * time.Second,
		},
		c.logger,
	)
	defer manager.CancelAll()

	// Ctrl+C stops the in-flight generation rather than the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Println()
	fmt.Printf("  %s %s %s\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.NameStyle.Render(sessionID),
		cliui.DimStyle.Render(fmt.Sprintf("(mode: %s)", c.mode)),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, err := c.handleCommand(ctx, api, input, &sessionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			}
			if done {
				break
			}
			continue
		}

		c.streamTurn(manager, pool, sigCh, sessionID, input)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// handleCommand executes an in-session slash command. It returns true when
// the chat loop should exit.
func (c *chatCommander) handleCommand(ctx context.Context, api *backend.Client, input string, sessionID *string) (bool, error) {
	fields := strings.Fields(input)

	switch fields[0] {
	case "/exit":
		return true, nil

	case "/mode":
		if len(fields) != 2 {
			return false, errors.New("usage: /mode <direct|react|plan>")
		}
		if _, err := parseMode(fields[1]); err != nil {
			return false, err
		}
		c.mode = fields[1]
		fmt.Printf("  %s Mode set to %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(c.mode))
		return false, nil

	case "/new":
		ddm := dotdir.NewManager()
		if err := ddm.ClearSession(c.configDir); err != nil {
			return false, err
		}
		id, err := c.ensureSession(ctx, api)
		if err != nil {
			return false, err
		}
		*sessionID = id
		fmt.Printf("  %s New session %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (try /mode, /new, /exit)", fields[0])
	}
}

// streamTurn submits one message and renders the streaming reply. It blocks
// until the turn reaches a terminal outcome; Ctrl+C cancels the turn.
func (c *chatCommander) streamTurn(manager *chat.Manager, pool *worker.Pool, sigCh <-chan os.Signal, sessionID, input string) {
	req := chat.Request{
		SessionID: sessionID,
		Message:   input,
		Mode:      chat.Mode(c.mode),
	}

	done := make(chan struct{})
	answering := false

	cb := chat.Callbacks{
		OnReasoningStart: func() {
			fmt.Print(reasoningPrompt)
		},
		OnReasoningChunk: func(content string) {
			fmt.Print(cliui.ReasoningStyle.Render(content))
		},
		OnReasoningEnd: func() {
			fmt.Println()
		},
		OnAnswerStart: func() {
			answering = true
			fmt.Print(assistantPrompt)
		},
		OnChunk: func(content string) {
			if !answering {
				// Legacy streams skip answer_start.
				answering = true
				fmt.Print(assistantPrompt)
			}
			fmt.Print(cliui.AnswerStyle.Render(content))
		},
		OnConnectionChange: func(s chat.Status) {
			if s == chat.StatusReconnecting {
				fmt.Printf("\n  %s\n", cliui.StatusStyle.Render("connection lost, retrying..."))
				c.slog.Warn("reconnecting", "session_id", sessionID)
			}
		},
		OnComplete: func(final chat.Message) {
			if final.Elapsed > 0 {
				fmt.Printf("\n  %s\n", cliui.DimStyle.Render(cliui.FormatDuration(final.Elapsed)))
			}
			c.slog.Info("turn completed",
				"session_id", final.SessionID,
				"elapsed", final.Elapsed,
				"answer_len", len(final.Text),
			)
			c.recordTurn(pool, input, final)
			close(done)
		},
		OnError: func(err error, final chat.Message) {
			fmt.Fprintf(os.Stderr, "\n  %s %s\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
			c.slog.Error("turn failed", "session_id", final.SessionID, "err", err)
			c.recordTurn(pool, input, final)
			close(done)
		},
	}

	if err := manager.Submit(req, cb); err != nil {
		fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
		return
	}

	key := req.DedupKey()
	for {
		select {
		case <-done:
			fmt.Println()
			return
		case <-sigCh:
			if manager.Cancel(key) {
				fmt.Printf("\n  %s\n", cliui.StatusStyle.Render("stopping generation..."))
			}
		}
	}
}

func (c *chatCommander) recordTurn(pool *worker.Pool, input string, final chat.Message) {
	pool.Enqueue(worker.Job{
		SessionID:   final.SessionID,
		UserMessage: input,
		Reply:       final,
		Source: eventstream.EventSource{
			Project: "atlas",
			Mode:    c.mode,
			Model:   c.model,
		},
	})
}

// ensureSession returns the pinned backend session, creating and pinning a
// fresh one when none exists.
func (c *chatCommander) ensureSession(ctx context.Context, api *backend.Client) (string, error) {
	ddm := dotdir.NewManager()

	state, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading session state: %w", err)
	}
	if state != nil && state.SessionID != "" {
		fmt.Printf("\n  %s Resuming session %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(state.SessionID),
		)
		if state.Mode != "" && c.mode == "" {
			c.mode = state.Mode
		}
		return state.SessionID, nil
	}

	id, err := api.CreateSession(ctx, "")
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	if err := ddm.SaveSession(&dotdir.SessionState{SessionID: id, Mode: c.mode}, c.configDir); err != nil {
		return "", fmt.Errorf("pinning session: %w", err)
	}

	fmt.Printf("\n  %s New conversation\n", cliui.DimStyle.Render("●"))
	return id, nil
}

// parseMode validates a conversation mode string.
func parseMode(s string) (chat.Mode, error) {
	switch chat.Mode(s) {
	case chat.ModeDirect, chat.ModeReact, chat.ModePlan:
		return chat.Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (valid: direct, react, plan)", s)
	}
}
