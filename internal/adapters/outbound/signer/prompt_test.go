package signer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/testutil"
)

func newTestPrompt(t *testing.T, in io.Reader) (*Prompt, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	p, err := NewPrompt(Config{In: in, Out: out, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("NewPrompt: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, out
}

func transferTx() entity.UnsignedTx {
	return entity.UnsignedTx{
		Chain:  entity.ChainSettlement,
		Origin: testutil.Alice,
		Call:   entity.BalancesTransfer(testutil.Bob, big.NewInt(42)),
	}
}

func TestNewPrompt_Validation(t *testing.T) {
	if _, err := NewPrompt(Config{Out: io.Discard}); err == nil {
		t.Error("expected error for missing input")
	}
	if _, err := NewPrompt(Config{In: strings.NewReader("")}); err == nil {
		t.Error("expected error for missing output")
	}
}

func TestSign_ReadsSignedExtrinsic(t *testing.T) {
	p, out := newTestPrompt(t, strings.NewReader("0xdeadbeef\nc0ffee\n"))

	signed, err := p.Sign(context.Background(), transferTx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(signed.Raw, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("raw = %x", signed.Raw)
	}
	if signed.Tx.Origin != testutil.Alice {
		t.Errorf("signed tx should carry the description, got %+v", signed.Tx)
	}
	printed := out.String()
	if !strings.Contains(printed, `"method": "transfer"`) || !strings.Contains(printed, testutil.Bob) {
		t.Errorf("prompt should show the transaction, got:\n%s", printed)
	}

	// Second answer without the 0x prefix.
	signed, err = p.Sign(context.Background(), transferTx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(signed.Raw, []byte{0xc0, 0xff, 0xee}) {
		t.Errorf("raw = %x", signed.Raw)
	}
}

func TestSign_EmptyLineDeclines(t *testing.T) {
	p, _ := newTestPrompt(t, strings.NewReader("\n"))

	signed, err := p.Sign(context.Background(), transferTx())
	if err != nil || signed != nil {
		t.Errorf("Sign = %v, %v; want nil, nil", signed, err)
	}
}

func TestSign_InvalidHex(t *testing.T) {
	p, _ := newTestPrompt(t, strings.NewReader("not-hex\n"))

	if _, err := p.Sign(context.Background(), transferTx()); err == nil {
		t.Error("expected error for non-hex answer")
	}
}

func TestSign_EOF(t *testing.T) {
	p, _ := newTestPrompt(t, strings.NewReader(""))

	for i := 0; i < 3; i++ {
		if _, err := p.Sign(context.Background(), transferTx()); !errors.Is(err, io.EOF) {
			t.Errorf("ask %d: expected io.EOF, got %v", i, err)
		}
	}
}

func TestClose(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p, _ := newTestPrompt(t, r)

	// A line arriving around Close must not be handed out.
	go func() { _, _ = w.Write([]byte("0xaa\n")) }()

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := p.Sign(context.Background(), transferTx()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := p.SignMessage(context.Background(), testutil.Alice, []byte("hi")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSign_ContextCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p, _ := newTestPrompt(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Sign(ctx, transferTx()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestSignMessage(t *testing.T) {
	p, out := newTestPrompt(t, strings.NewReader("0x0102\n\n"))

	sig, err := p.SignMessage(context.Background(), testutil.Alice, []byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(sig, []byte{1, 2}) {
		t.Errorf("signature = %x", sig)
	}
	if !strings.Contains(out.String(), "0x68656c6c6f") {
		t.Errorf("prompt should show the message hex, got:\n%s", out.String())
	}

	sig, err = p.SignMessage(context.Background(), testutil.Alice, []byte("again"))
	if err != nil || sig != nil {
		t.Errorf("SignMessage = %x, %v; want declined", sig, err)
	}
}
