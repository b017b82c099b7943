// Package signer provides an interactive signing gateway for terminal use.
//
// The prompt signer never sees keys. It prints each unsigned transaction as
// JSON and reads back the signed extrinsic produced by an external wallet,
// hex-encoded on one line. An empty line declines.
package signer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// ErrClosed is returned by a closed prompt.
var ErrClosed = errors.New("prompt signer closed")

// Compile-time check that Prompt implements outbound.Signer.
var _ outbound.Signer = (*Prompt)(nil)

// Config holds configuration for the prompt signer.
type Config struct {
	// In supplies the user's answers.
	In io.Reader

	// Out receives the prompts.
	Out io.Writer

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Prompt is a Signer that asks the user for every signature.
type Prompt struct {
	out    io.Writer
	lines  chan string
	done   chan struct{}
	mu     sync.Mutex
	logger *slog.Logger

	closeOnce sync.Once

	// readErr is set before lines is closed.
	readErr error
}

// NewPrompt creates a prompt signer reading answers from config.In.
func NewPrompt(config Config) (*Prompt, error) {
	if config.In == nil {
		return nil, fmt.Errorf("input reader is required")
	}
	if config.Out == nil {
		return nil, fmt.Errorf("output writer is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	p := &Prompt{
		out:    config.Out,
		lines:  make(chan string),
		done:   make(chan struct{}),
		logger: config.Logger.With("component", "prompt-signer"),
	}
	go p.readLines(config.In)
	return p, nil
}

// Sign prints tx and waits for the signed extrinsic.
func (p *Prompt) Sign(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error) {
	body, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nSign this %s transaction as %s:\n%s\n", tx.Chain, tx.Origin, body)
	raw, err := p.ask(ctx, "Signed extrinsic (hex, empty to decline): ")
	if err != nil || raw == nil {
		return nil, err
	}
	p.logger.Debug("transaction signed", "call", tx.Call.Pallet+"."+tx.Call.Method, "bytes", len(raw))
	return &entity.SignedTx{Tx: tx, Raw: raw}, nil
}

// SignMessage prints message and waits for the signature.
func (p *Prompt) SignMessage(ctx context.Context, account string, message []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nSign this message as %s:\n%s\n", account, hexutil.Encode(message))
	return p.ask(ctx, "Signature (hex, empty to decline): ")
}

// ask returns (nil, nil) on an empty answer.
func (p *Prompt) ask(ctx context.Context, prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)

	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	var (
		line string
		ok   bool
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	case line, ok = <-p.lines:
	}
	if !ok {
		return nil, fmt.Errorf("reading answer: %w", p.readErr)
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		p.logger.Info("signing declined")
		return nil, nil
	}
	if !strings.HasPrefix(answer, "0x") {
		answer = "0x" + answer
	}
	raw, err := hexutil.Decode(answer)
	if err != nil {
		return nil, fmt.Errorf("answer is not hex: %w", err)
	}
	return raw, nil
}

// Close stops handing out answers. A read already blocked on the input
// returns once the input does.
func (p *Prompt) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// readLines feeds input lines to ask. After EOF every ask gets io.EOF.
func (p *Prompt) readLines(in io.Reader) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.done:
			return
		}
	}
	p.readErr = scanner.Err()
	if p.readErr == nil {
		p.readErr = io.EOF
	}
	close(p.lines)
}
