package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeak speaks replies through the espeak-ng command line synthesizer.
type ESpeak struct {
	command string
	voice   string
	rate    int

	run func(ctx context.Context, name string, args ...string) error
}

func NewESpeak(command string, voice string, rate int) *ESpeak {
	if command == "" {
		command = "espeak-ng"
	}
	if rate <= 0 {
		rate = 170
	}
	return &ESpeak{
		command: command,
		voice:   voice,
		rate:    rate,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (e *ESpeak) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	args := []string{"-s", strconv.Itoa(e.rate)}
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	args = append(args, text)

	if err := e.run(ctx, e.command, args...); err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	return nil
}
