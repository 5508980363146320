package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liora/internal/assistant"
)

const chatHelp = `Commands:
  /new              start a new conversation
  /persona <name>   switch persona
  /personas         list personas
  /feedback <text>  rate the last answer
  /rename <title>   retitle this conversation
  /delete           delete this conversation and start another
  /quit             leave`

func newChatCmd() *cobra.Command {
	var (
		personaID string
		pretty    bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with Liora in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := build(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)

			s := &chatSession{
				assistant: a.Assistant,
				persona:   personaID,
				in:        os.Stdin,
				out:       cmd.OutOrStdout(),
				logger:    logger.Named("chat"),
			}
			if pretty {
				r, err := glamour.NewTermRenderer(
					glamour.WithAutoStyle(),
					glamour.WithWordWrap(80),
				)
				if err != nil {
					return fmt.Errorf("markdown renderer: %w", err)
				}
				s.render = r.Render
			}
			return s.run(ctx)
		},
	}
	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "persona to chat with")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "render replies as markdown instead of streaming")
	return cmd
}

// chatSession is one terminal conversation loop.
type chatSession struct {
	assistant *assistant.Assistant
	persona   string
	in        io.Reader
	out       io.Writer
	// render, when set, formats the finished reply and disables streaming.
	render func(string) (string, error)
	logger *zap.Logger

	conversationID string
}

func (s *chatSession) run(ctx context.Context) error {
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if err := s.start(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Type /help for commands.")

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}
		if err := s.reply(ctx, line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *chatSession) start() error {
	c, err := s.assistant.Start(cliOwner, s.persona)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	s.conversationID = c.ID
	p := s.assistant.Personas().Get(c.Persona)
	fmt.Fprintf(s.out, "%s: %s\n", p.Label(), c.Messages[len(c.Messages)-1].Content)
	return nil
}

func (s *chatSession) command(line string) (quit bool, err error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit":
		return true, nil
	case "new":
		return false, s.start()
	case "persona":
		personas := s.assistant.Personas()
		if arg == "" || !personas.Has(arg) {
			fmt.Fprintf(s.out, "Unknown persona %q. Try /personas.\n", arg)
			return false, nil
		}
		s.persona = arg
		fmt.Fprintf(s.out, "%s here now!\n", personas.Get(arg).Label())
	case "personas":
		personas := s.assistant.Personas()
		for _, id := range personas.Names() {
			fmt.Fprintf(s.out, "  %s (%s)\n", personas.Get(id).Label(), id)
		}
	case "feedback":
		if arg == "" {
			fmt.Fprintln(s.out, "Usage: /feedback <text>")
			return false, nil
		}
		if err := s.assistant.Feedback(s.conversationID, arg); err != nil {
			fmt.Fprintln(s.out, "There is no answer to rate yet.")
			return false, nil
		}
		fmt.Fprintln(s.out, "Thanks for the feedback!")
	case "rename":
		if arg == "" {
			fmt.Fprintln(s.out, "Usage: /rename <title>")
			return false, nil
		}
		if err := s.assistant.Rename(s.conversationID, arg); err != nil {
			return false, fmt.Errorf("rename: %w", err)
		}
		fmt.Fprintf(s.out, "Renamed to %q.\n", arg)
	case "delete":
		c, err := s.assistant.Conversations().Get(s.conversationID)
		if err != nil {
			return false, err
		}
		if err := s.assistant.Delete(c.ID); err != nil {
			return false, fmt.Errorf("delete: %w", err)
		}
		fmt.Fprintf(s.out, "Deleted %q.\n", c.Title)
		return false, s.start()
	default:
		fmt.Fprintln(s.out, chatHelp)
	}
	return false, nil
}

func (s *chatSession) reply(ctx context.Context, msg string) error {
	req := assistant.Request{
		ConversationID: s.conversationID,
		Persona:        s.persona,
		Message:        msg,
	}
	streamed := false
	if s.render == nil {
		req.OnChunk = func(chunk string) {
			if !streamed {
				fmt.Fprintf(s.out, "%s: ", s.assistant.Personas().Get(s.persona).Label())
				streamed = true
			}
			fmt.Fprint(s.out, chunk)
		}
	}

	res, err := s.assistant.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	if !res.Augmentation.Empty() {
		s.logger.Debug("reply augmented", zap.String("topic", res.Augmentation.Topic))
	}

	switch {
	case streamed:
		fmt.Fprintln(s.out)
	case s.render != nil:
		text, err := s.render(res.Reply)
		if err != nil {
			s.logger.Warn("markdown render failed", zap.Error(err))
			text = res.Reply + "\n"
		}
		fmt.Fprintf(s.out, "%s:\n%s", res.Persona.Label(), text)
	default:
		// Nothing streamed, e.g. the apology after a model error.
		fmt.Fprintf(s.out, "%s: %s\n", res.Persona.Label(), res.Reply)
	}
	return nil
}
